package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tipos de producto.
const (
	TipoProducto = "producto" // repuesto físico con stock
	TipoServicio = "servicio" // mano de obra, sin stock
	TipoTercero  = "tercero"  // trabajo tercerizado, sin stock
)

// Producto is a catalog item. Stock lives in three places: StockActual counts
// sealed/whole units, UnidadSerial rows track serialized units and
// InventarioParcial rows hold open containers of fractional products.
type Producto struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CodigoBarras string    `gorm:"uniqueIndex;not null"`
	Nombre       string    `gorm:"index;not null"`
	Descripcion  *string
	Tipo         string          `gorm:"type:varchar(20);not null;default:'producto'"`
	PrecioCosto  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PrecioVenta  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	StockActual  int             `gorm:"not null;default:0"`
	StockMinimo  int             `gorm:"not null;default:0"`
	UnidadMedida string          `gorm:"not null;default:'unidad'"`
	// VentaFraccionada allows selling part of a container (e.g. liters of oil).
	VentaFraccionada bool `gorm:"not null;default:false"`
	// Capacidad is the full-container quantity in UnidadMedida; only meaningful
	// when VentaFraccionada is set.
	Capacidad      decimal.Decimal `gorm:"type:decimal(12,3);not null;default:1"`
	RequiereSerial bool            `gorm:"not null;default:false"`
	Activo         bool            `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Producto) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Tipo == "" {
		p.Tipo = TipoProducto
	}
	return p.Validar()
}

// Validar checks the handling-mode invariants of a catalog item.
func (p *Producto) Validar() error {
	if p.RequiereSerial && p.VentaFraccionada {
		return errors.New("un producto no puede requerir serial y venderse fraccionado a la vez")
	}
	if p.VentaFraccionada && !p.Capacidad.IsPositive() {
		return errors.New("un producto fraccionado requiere capacidad mayor a cero")
	}
	switch p.Tipo {
	case TipoProducto, TipoServicio, TipoTercero:
	default:
		return errors.New("tipo de producto invalido: " + p.Tipo)
	}
	return nil
}

// ManejaStock reports whether the item is backed by physical inventory.
func (p *Producto) ManejaStock() bool { return p.Tipo == TipoProducto }
