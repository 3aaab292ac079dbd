package service

import (
	"errors"
	"fmt"
	"time"

	"tallerfranco/internal/model"
	"tallerfranco/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Conciliador applies and reverses the inventory effect of sale lines. Create,
// edit and void all go through it, so a reversal is always the exact inverse
// of what Aplicar recorded in the line's datos_extra.
//
// Every method runs inside the caller's transaction.
type Conciliador struct {
	productos   repository.ProductoRepository
	seriales    repository.SerialRepository
	parciales   repository.ParcialRepository
	movimientos repository.MovimientoStockRepository

	costoCatalogoEnServicios bool
	now                      func() time.Time
}

func NewConciliador(
	productos repository.ProductoRepository,
	seriales repository.SerialRepository,
	parciales repository.ParcialRepository,
	movimientos repository.MovimientoStockRepository,
	costoCatalogoEnServicios bool,
) *Conciliador {
	return &Conciliador{
		productos:                productos,
		seriales:                 seriales,
		parciales:                parciales,
		movimientos:              movimientos,
		costoCatalogoEnServicios: costoCatalogoEnServicios,
		now:                      time.Now,
	}
}

// Aplicar performs the inventory mutation for it and returns the unit cost to
// freeze on the line. Server-owned keys are written into it.Datos.
func (c *Conciliador) Aplicar(tx *gorm.DB, venta *model.Venta, it *ItemClasificado) (decimal.Decimal, error) {
	if it.Datos == nil {
		it.Datos = datatypes.JSONMap{}
	}
	it.Datos[ExtraHandling] = string(it.Manejo)

	switch it.Manejo {
	case ManejoSerial:
		return c.aplicarSerial(tx, venta, it)
	case ManejoFraccionParcial:
		return c.aplicarParcial(tx, it)
	case ManejoFraccionSellado:
		return c.aplicarSellado(tx, venta, it)
	case ManejoDiscreto:
		return c.aplicarDiscreto(tx, venta, it)
	case ManejoSinStock:
		if c.costoCatalogoEnServicios {
			return it.Producto.PrecioCosto, nil
		}
		return decimal.Zero, nil
	}
	return decimal.Zero, fmt.Errorf("manejo desconocido %q", it.Manejo)
}

func (c *Conciliador) aplicarSerial(tx *gorm.DB, venta *model.Venta, it *ItemClasificado) (decimal.Decimal, error) {
	p := it.Producto
	var inicio, fin *time.Time
	if it.Extra.WarrantyMonths > 0 {
		desde := venta.CreatedAt
		if desde.IsZero() {
			desde = c.now()
		}
		hasta := desde.AddDate(0, it.Extra.WarrantyMonths, 0)
		inicio, fin = &desde, &hasta
	}

	ok, err := c.seriales.MarcarVendidoTx(tx, p.ID, it.Extra.SerialCode, venta.ID, inicio, fin)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, &ConflictoStockError{
			Causa:      ErrSerialNoDisponible,
			ProductoID: p.ID,
			Producto:   fmt.Sprintf("%s (serie %s)", p.Nombre, it.Extra.SerialCode),
			Solicitado: decimal.NewFromInt(1),
			Disponible: decimal.Zero,
		}
	}
	return p.PrecioCosto, nil
}

func (c *Conciliador) aplicarParcial(tx *gorm.DB, it *ItemClasificado) (decimal.Decimal, error) {
	p := it.Producto
	conflicto := func(disponible decimal.Decimal) error {
		return &ConflictoStockError{
			Causa:      ErrStockParcialInsuficiente,
			ProductoID: p.ID,
			Producto:   p.Nombre,
			Solicitado: it.Cantidad,
			Disponible: disponible,
			Unidad:     p.UnidadMedida,
		}
	}

	rem, err := c.parciales.FindByIDForUpdateTx(tx, it.RemanenteID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, conflicto(decimal.Zero)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if rem.ProductoID != p.ID || !rem.Activo {
		return decimal.Zero, conflicto(decimal.Zero)
	}
	if rem.CantidadRestante.LessThan(it.Cantidad) {
		return decimal.Zero, conflicto(rem.CantidadRestante)
	}

	restante := rem.CantidadRestante.Sub(it.Cantidad)
	if err := c.parciales.AjustarTx(tx, rem.ID, it.Cantidad.Neg(), restante.GreaterThan(model.EpsilonParcial)); err != nil {
		return decimal.Zero, err
	}
	return costoFraccion(p), nil
}

func (c *Conciliador) aplicarSellado(tx *gorm.DB, venta *model.Venta, it *ItemClasificado) (decimal.Decimal, error) {
	p, err := c.productos.FindByIDForUpdateTx(tx, it.Producto.ID)
	if err != nil {
		return decimal.Zero, err
	}
	envases := it.Cantidad.Div(p.Capacidad).Ceil()
	n := int(envases.IntPart())
	if p.StockActual < n {
		return decimal.Zero, &ConflictoStockError{
			Causa:      ErrStockInsuficiente,
			ProductoID: p.ID,
			Producto:   p.Nombre,
			Solicitado: envases,
			Disponible: decimal.NewFromInt(int64(p.StockActual)),
		}
	}
	if err := c.moverStock(tx, p, -n, model.MovimientoVenta, venta); err != nil {
		return decimal.Zero, err
	}
	it.Datos[ExtraSealedContainers] = n

	resto := envases.Mul(p.Capacidad).Sub(it.Cantidad)
	if resto.IsPositive() {
		ventaID := venta.ID
		rem := &model.InventarioParcial{
			ProductoID:       p.ID,
			CantidadRestante: resto,
			Codigo:           fmt.Sprintf("P-%d-%d", venta.Numero, it.Posicion+1),
			Activo:           resto.GreaterThan(model.EpsilonParcial),
			VentaOrigenID:    &ventaID,
		}
		if err := c.parciales.CreateTx(tx, rem); err != nil {
			return decimal.Zero, err
		}
		it.Datos[ExtraCreatedRemnantID] = rem.ID.String()
		it.Datos[ExtraCreatedRemnantQty] = resto.String()
	}
	return costoFraccion(p), nil
}

func (c *Conciliador) aplicarDiscreto(tx *gorm.DB, venta *model.Venta, it *ItemClasificado) (decimal.Decimal, error) {
	p, err := c.productos.FindByIDForUpdateTx(tx, it.Producto.ID)
	if err != nil {
		return decimal.Zero, err
	}
	unidades := it.Cantidad.Ceil()
	n := int(unidades.IntPart())
	if p.StockActual < 1 || p.StockActual < n {
		return decimal.Zero, &ConflictoStockError{
			Causa:      ErrStockInsuficiente,
			ProductoID: p.ID,
			Producto:   p.Nombre,
			Solicitado: unidades,
			Disponible: decimal.NewFromInt(int64(p.StockActual)),
		}
	}
	if err := c.moverStock(tx, p, -n, model.MovimientoVenta, venta); err != nil {
		return decimal.Zero, err
	}
	it.Datos[ExtraUnitsDeducted] = n
	return p.PrecioCosto, nil
}

// Revertir undoes the inventory effect of a persisted line. tipoMovimiento
// tags the audit rows (restore_anulacion or restore_edicion).
func (c *Conciliador) Revertir(tx *gorm.DB, venta *model.Venta, item *model.VentaItem, tipoMovimiento string) error {
	extra, err := DecodificarDatosExtra(item.DatosExtra)
	if err != nil {
		return fmt.Errorf("item %s: %w", item.ID, err)
	}

	switch Manejo(extra.Handling) {
	case ManejoSerial:
		return c.seriales.LiberarTx(tx, item.ProductoID, extra.SerialCode)

	case ManejoFraccionParcial:
		id, err := uuid.Parse(extra.PartialRemnantID)
		if err != nil {
			return fmt.Errorf("item %s: partial_remnant_id inválido: %w", item.ID, err)
		}
		rem, err := c.parciales.FindByIDForUpdateTx(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Str("remanente_id", id.String()).Str("venta_id", venta.ID.String()).
				Msg("remanente ya no existe, se omite la devolución parcial")
			return nil
		}
		if err != nil {
			return err
		}
		nuevo := rem.CantidadRestante.Add(item.Cantidad)
		return c.parciales.AjustarTx(tx, rem.ID, item.Cantidad, nuevo.GreaterThan(model.EpsilonParcial))

	case ManejoFraccionSellado:
		p, err := c.productos.FindByIDForUpdateTx(tx, item.ProductoID)
		if err != nil {
			return err
		}
		if err := c.moverStock(tx, p, extra.SealedContainers, tipoMovimiento, venta); err != nil {
			return err
		}
		return c.revertirRemanenteCreado(tx, extra)

	case ManejoDiscreto:
		p, err := c.productos.FindByIDForUpdateTx(tx, item.ProductoID)
		if err != nil {
			return err
		}
		n := extra.UnitsDeducted
		if n == 0 {
			n = int(item.Cantidad.Ceil().IntPart())
		}
		return c.moverStock(tx, p, n, tipoMovimiento, venta)

	case ManejoSinStock:
		return nil
	}
	return fmt.Errorf("item %s: handling desconocido %q", item.ID, extra.Handling)
}

// revertirRemanenteCreado removes the container opened by a sealed split. An
// untouched container is deleted; one already consumed by other sales keeps
// its row and only loses what this line put in.
func (c *Conciliador) revertirRemanenteCreado(tx *gorm.DB, extra DatosExtra) error {
	if extra.CreatedRemnantID == "" {
		return nil
	}
	id, err := uuid.Parse(extra.CreatedRemnantID)
	if err != nil {
		return fmt.Errorf("created_remnant_id inválido: %w", err)
	}
	rem, err := c.parciales.FindByIDForUpdateTx(tx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	creado := extra.RemanenteCreado()
	if rem.CantidadRestante.Equal(creado) {
		return c.parciales.DeleteTx(tx, rem.ID)
	}
	nuevo := rem.CantidadRestante.Sub(creado)
	return c.parciales.AjustarTx(tx, rem.ID, creado.Neg(), nuevo.GreaterThan(model.EpsilonParcial))
}

func (c *Conciliador) moverStock(tx *gorm.DB, p *model.Producto, delta int, tipo string, venta *model.Venta) error {
	if err := c.productos.UpdateStockTx(tx, p.ID, delta); err != nil {
		return err
	}
	ref := venta.ID
	mov := &model.MovimientoStock{
		ProductoID:    p.ID,
		Tipo:          tipo,
		Cantidad:      delta,
		StockAnterior: p.StockActual,
		StockNuevo:    p.StockActual + delta,
		Motivo:        motivoMovimiento(tipo, venta.Numero),
		ReferenciaID:  &ref,
	}
	if err := c.movimientos.CreateTx(tx, mov); err != nil {
		return err
	}
	p.StockActual += delta
	return nil
}

func motivoMovimiento(tipo string, numero int) string {
	switch tipo {
	case model.MovimientoRestoreAnulacion:
		return fmt.Sprintf("Anulación venta #%d", numero)
	case model.MovimientoRestoreEdicion:
		return fmt.Sprintf("Edición venta #%d", numero)
	default:
		return fmt.Sprintf("Venta #%d", numero)
	}
}

// costoFraccion is the cost of one UnidadMedida of a fractional product.
func costoFraccion(p *model.Producto) decimal.Decimal {
	if !p.Capacidad.IsPositive() {
		return p.PrecioCosto
	}
	return p.PrecioCosto.DivRound(p.Capacidad, 4)
}
