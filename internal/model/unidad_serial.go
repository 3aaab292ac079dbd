package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Estados de unidad serializada.
const (
	SerialDisponible = "disponible"
	SerialVendido    = "vendido"
)

// UnidadSerial is one physically distinct unit of a product that requires a
// serial (e.g. a battery). A unit moves disponible → vendido once per sale and
// back to disponible when that sale is voided or edited.
type UnidadSerial struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProductoID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_producto_serial"`
	CodigoSerial   string     `gorm:"not null;uniqueIndex:idx_producto_serial"`
	Estado         string     `gorm:"type:varchar(20);not null;default:'disponible';index"`
	VentaID        *uuid.UUID `gorm:"type:uuid;index"`
	FechaIngreso   time.Time  `gorm:"not null"`
	GarantiaInicio *time.Time
	GarantiaFin    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (UnidadSerial) TableName() string { return "unidades_serial" }

func (u *UnidadSerial) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.FechaIngreso.IsZero() {
		u.FechaIngreso = time.Now()
	}
	return nil
}
