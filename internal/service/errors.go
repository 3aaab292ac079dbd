package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrStockInsuficiente        = errors.New("stock insuficiente")
	ErrStockParcialInsuficiente = errors.New("stock parcial insuficiente")
	ErrSerialNoDisponible       = errors.New("número de serie no disponible")
	ErrSerialRequerido          = errors.New("el producto requiere número de serie")
	ErrDescuentoInvalido        = errors.New("el descuento no puede superar el subtotal")
	ErrProductoNoEncontrado     = errors.New("producto no encontrado")
	ErrVentaNoEncontrada        = errors.New("venta no encontrada")
	ErrVentaYaAnulada           = errors.New("la venta ya está anulada")
	ErrVentaAnulada             = errors.New("no se puede editar una venta anulada")
	ErrTransaccionDuplicada     = errors.New("transacción duplicada")
	ErrItemInvalido             = errors.New("ítem inválido")
	ErrFiltroInvalido           = errors.New("filtro inválido")
	ErrSerialDuplicado          = errors.New("número de serie ya registrado")
)

// ConflictoStockError reports which product ran short and by how much.
// It unwraps to ErrStockInsuficiente, ErrStockParcialInsuficiente or
// ErrSerialNoDisponible.
type ConflictoStockError struct {
	Causa      error
	ProductoID uuid.UUID
	Producto   string
	Solicitado decimal.Decimal
	Disponible decimal.Decimal
	Unidad     string
}

func (e *ConflictoStockError) Error() string {
	unidad := e.Unidad
	if unidad == "" {
		unidad = "unidades"
	}
	return fmt.Sprintf("%s: %s (solicitado %s, disponible %s %s)",
		e.Causa, e.Producto, e.Solicitado.String(), e.Disponible.String(), unidad)
}

func (e *ConflictoStockError) Unwrap() error { return e.Causa }

// DuplicadaError is returned when the idempotency key already belongs to a
// persisted sale.
type DuplicadaError struct {
	VentaID uuid.UUID
}

func (e *DuplicadaError) Error() string {
	if e.VentaID == uuid.Nil {
		return ErrTransaccionDuplicada.Error()
	}
	return fmt.Sprintf("%s: venta %s", ErrTransaccionDuplicada, e.VentaID)
}

func (e *DuplicadaError) Unwrap() error { return ErrTransaccionDuplicada }

func itemInvalido(pos int, format string, args ...interface{}) error {
	return fmt.Errorf("%w: ítem %d: %s", ErrItemInvalido, pos+1, fmt.Sprintf(format, args...))
}

// esErrorDeNegocio reports whether err is an expected rejection rather than
// an integrity failure.
func esErrorDeNegocio(err error) bool {
	for _, target := range []error{
		ErrStockInsuficiente, ErrStockParcialInsuficiente, ErrSerialNoDisponible,
		ErrSerialRequerido, ErrDescuentoInvalido, ErrProductoNoEncontrado,
		ErrVentaNoEncontrada, ErrVentaYaAnulada, ErrVentaAnulada,
		ErrTransaccionDuplicada, ErrItemInvalido, ErrFiltroInvalido, ErrSerialDuplicado,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
