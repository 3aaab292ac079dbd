package service

import (
	"fmt"

	"tallerfranco/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Manejo is the inventory handling path chosen for one line item.
type Manejo string

const (
	ManejoSerial          Manejo = "serial"
	ManejoFraccionParcial Manejo = "fraccion_parcial"
	ManejoFraccionSellado Manejo = "fraccion_sellado"
	ManejoDiscreto        Manejo = "discreto"
	ManejoSinStock        Manejo = "sin_stock"
)

// ItemClasificado is a validated line ready for Conciliador.Aplicar.
type ItemClasificado struct {
	Posicion    int
	Producto    *model.Producto
	Cantidad    decimal.Decimal
	Precio      decimal.Decimal
	Manejo      Manejo
	Extra       DatosExtra
	Datos       datatypes.JSONMap
	RemanenteID uuid.UUID // only for ManejoFraccionParcial
}

func (it *ItemClasificado) Subtotal() decimal.Decimal {
	return it.Precio.Mul(it.Cantidad).Round(2)
}

// Column limits of venta_items: cantidad numeric(12,3), precio and
// subtotal numeric(12,2).
var (
	maxCantidad = decimal.RequireFromString("999999999.999")
	maxImporte  = decimal.RequireFromString("9999999999.99")
)

// ClasificarItem picks the handling path for a line and validates the
// extra-data keys that path needs. It never touches the database.
func ClasificarItem(pos int, p *model.Producto, cantidad, precio decimal.Decimal, datos map[string]interface{}) (*ItemClasificado, error) {
	if p == nil {
		return nil, ErrProductoNoEncontrado
	}
	if !cantidad.IsPositive() {
		return nil, itemInvalido(pos, "la cantidad debe ser mayor a cero")
	}
	if cantidad.GreaterThan(maxCantidad) {
		return nil, itemInvalido(pos, "la cantidad supera el máximo de %s", maxCantidad)
	}
	if !cantidad.Equal(cantidad.Round(3)) {
		return nil, itemInvalido(pos, "la cantidad admite hasta 3 decimales")
	}
	if precio.IsNegative() {
		return nil, itemInvalido(pos, "el precio no puede ser negativo")
	}
	if !precio.Equal(precio.Round(2)) {
		return nil, itemInvalido(pos, "el precio admite hasta 2 decimales")
	}
	if precio.Mul(cantidad).Round(2).GreaterThan(maxImporte) {
		return nil, itemInvalido(pos, "el subtotal supera el máximo de %s", maxImporte)
	}
	if !p.Activo {
		return nil, itemInvalido(pos, "el producto %s está inactivo", p.Nombre)
	}
	if err := p.Validar(); err != nil {
		return nil, itemInvalido(pos, "%v", err)
	}

	limpio := datosCliente(datos)
	extra, err := DecodificarDatosExtra(limpio)
	if err != nil {
		return nil, itemInvalido(pos, "%v", err)
	}
	if extra.WarrantyMonths < 0 {
		return nil, itemInvalido(pos, "warranty_months no puede ser negativo")
	}

	it := &ItemClasificado{
		Posicion: pos,
		Producto: p,
		Cantidad: cantidad,
		Precio:   precio,
		Extra:    extra,
		Datos:    limpio,
	}

	switch {
	case !p.ManejaStock():
		it.Manejo = ManejoSinStock

	case p.RequiereSerial:
		if extra.SerialCode == "" {
			return nil, &serialRequeridoError{pos: pos, producto: p.Nombre}
		}
		if !cantidad.Equal(decimal.NewFromInt(1)) {
			return nil, itemInvalido(pos, "un ítem con número de serie corresponde a una sola unidad")
		}
		it.Manejo = ManejoSerial

	case p.VentaFraccionada:
		if extra.PartialRemnantID == "" {
			it.Manejo = ManejoFraccionSellado
			break
		}
		id, err := uuid.Parse(extra.PartialRemnantID)
		if err != nil {
			return nil, itemInvalido(pos, "partial_remnant_id inválido")
		}
		it.Manejo = ManejoFraccionParcial
		it.RemanenteID = id

	default:
		it.Manejo = ManejoDiscreto
	}

	return it, nil
}

type serialRequeridoError struct {
	pos      int
	producto string
}

func (e *serialRequeridoError) Error() string {
	return fmt.Sprintf("%s: ítem %d: %s", ErrSerialRequerido, e.pos+1, e.producto)
}

func (e *serialRequeridoError) Unwrap() error { return ErrSerialRequerido }
