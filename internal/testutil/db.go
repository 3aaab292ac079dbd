// Package testutil builds throwaway databases and catalog fixtures for
// package tests.
package testutil

import (
	"fmt"
	"testing"

	"tallerfranco/internal/infra"
	"tallerfranco/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns an isolated in-memory SQLite database migrated with the
// production models. A single connection keeps every query on the same
// in-memory database; code under test must run transactional queries
// through the tx it is handed.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.Migrate(db))
	return db
}

var barcodeSeq int

func nextBarcode() string {
	barcodeSeq++
	return fmt.Sprintf("779%010d", barcodeSeq)
}

// CrearProducto inserts p filling the fields tests rarely care about.
func CrearProducto(t *testing.T, db *gorm.DB, p model.Producto) *model.Producto {
	t.Helper()
	if p.CodigoBarras == "" {
		p.CodigoBarras = nextBarcode()
	}
	if p.Nombre == "" {
		p.Nombre = "Producto " + p.CodigoBarras
	}
	if p.PrecioVenta.IsZero() {
		p.PrecioVenta = decimal.NewFromInt(100)
	}
	if p.PrecioCosto.IsZero() {
		p.PrecioCosto = decimal.NewFromInt(60)
	}
	if p.Capacidad.IsZero() {
		p.Capacidad = decimal.NewFromInt(1)
	}
	if p.UnidadMedida == "" {
		p.UnidadMedida = "unidad"
	}
	activo := p.Activo
	p.Activo = true
	require.NoError(t, db.Create(&p).Error)
	if !activo {
		require.NoError(t, db.Model(&model.Producto{}).Where("id = ?", p.ID).Update("activo", false).Error)
		p.Activo = false
	}
	return &p
}

// Discreto is a physical product counted in whole units.
func Discreto(t *testing.T, db *gorm.DB, nombre string, stock int) *model.Producto {
	t.Helper()
	return CrearProducto(t, db, model.Producto{Nombre: nombre, StockActual: stock, Activo: true})
}

// Fraccionado is sold by unit of measure out of containers of capacidad.
func Fraccionado(t *testing.T, db *gorm.DB, nombre, capacidad string, stock int) *model.Producto {
	t.Helper()
	return CrearProducto(t, db, model.Producto{
		Nombre:           nombre,
		StockActual:      stock,
		VentaFraccionada: true,
		Capacidad:        decimal.RequireFromString(capacidad),
		UnidadMedida:     "litro",
		PrecioCosto:      decimal.NewFromInt(40),
		PrecioVenta:      decimal.NewFromInt(60),
		Activo:           true,
	})
}

// Serializado creates a product that requires serials and loads the given
// codes as available units.
func Serializado(t *testing.T, db *gorm.DB, nombre string, seriales ...string) *model.Producto {
	t.Helper()
	p := CrearProducto(t, db, model.Producto{Nombre: nombre, RequiereSerial: true, Activo: true})
	for _, s := range seriales {
		require.NoError(t, db.Create(&model.UnidadSerial{
			ProductoID:   p.ID,
			CodigoSerial: s,
			Estado:       model.SerialDisponible,
		}).Error)
	}
	return p
}

// Servicio is a non-stock line (labour).
func Servicio(t *testing.T, db *gorm.DB, nombre string) *model.Producto {
	t.Helper()
	return CrearProducto(t, db, model.Producto{Nombre: nombre, Tipo: model.TipoServicio, Activo: true})
}

// Stock reads the current stock_actual of a product.
func Stock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p model.Producto
	require.NoError(t, db.Where("id = ?", id).First(&p).Error)
	return p.StockActual
}

// Serial reads one serial unit.
func Serial(t *testing.T, db *gorm.DB, productoID uuid.UUID, codigo string) model.UnidadSerial {
	t.Helper()
	var u model.UnidadSerial
	require.NoError(t, db.Where("producto_id = ? AND codigo_serial = ?", productoID, codigo).First(&u).Error)
	return u
}

// Parciales lists every remnant of a product, active or not, oldest first.
func Parciales(t *testing.T, db *gorm.DB, productoID uuid.UUID) []model.InventarioParcial {
	t.Helper()
	var out []model.InventarioParcial
	require.NoError(t, db.Where("producto_id = ?", productoID).Order("created_at ASC").Find(&out).Error)
	return out
}
