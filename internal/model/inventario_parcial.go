package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EpsilonParcial is the remaining quantity under which an open container is
// considered empty and deactivated.
var EpsilonParcial = decimal.RequireFromString("0.01")

// InventarioParcial is an open container of a fractional product. It is
// created when a sale splits a sealed unit and leaves a remainder, consumed
// by later sales and deactivated once empty. Rows are never deleted by
// consumption, only by reversing the sale that created them.
type InventarioParcial struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductoID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	CantidadRestante decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Codigo           string          `gorm:"type:varchar(40);not null"`
	Activo           bool            `gorm:"not null;default:true;index"`
	// VentaOrigenID is the sale whose split opened the container.
	VentaOrigenID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (InventarioParcial) TableName() string { return "inventario_parcial" }

func (p *InventarioParcial) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
