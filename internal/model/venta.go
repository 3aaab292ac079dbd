package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Estados de venta. anulada is terminal.
const (
	VentaCompletada = "completada"
	VentaPendiente  = "pendiente"
	VentaAnulada    = "anulada"
)

// Venta is the sale header. Sales are never deleted: voiding flips Estado to
// anulada and keeps header and items for audit.
type Venta struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Numero    int             `gorm:"uniqueIndex;not null"`
	UsuarioID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Cliente   string          `gorm:"not null;default:''"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descuento decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado    string          `gorm:"type:varchar(20);not null;default:'completada';index"`
	// IdempotencyKey is generated by the client per checkout attempt.
	IdempotencyKey  string `gorm:"type:varchar(64);uniqueIndex;not null"`
	MotivoAnulacion *string
	AnuladaAt       *time.Time
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time

	Items []VentaItem `gorm:"foreignKey:VentaID"`
}

func (Venta) TableName() string { return "ventas" }

func (v *Venta) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// VentaItem is one line of a sale. CostoUnitario is frozen when the line is
// applied and never recomputed from the catalog.
type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VentaID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CostoUnitario  decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// DatosExtra holds handling-specific keys (serial_code, partial_remnant_id,
	// created_remnant_id, ...). See service.DatosExtra.
	DatosExtra datatypes.JSONMap
	Orden      int `gorm:"not null;default:0"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (VentaItem) TableName() string { return "venta_items" }

func (i *VentaItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
