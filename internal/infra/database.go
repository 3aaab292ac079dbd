package infra

import (
	"fmt"

	"tallerfranco/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig sizes the shared connection pool.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// NewDatabase opens the shared GORM pool backed by pgx. TranslateError makes
// unique violations surface as gorm.ErrDuplicatedKey so the sale service can
// tell a duplicate idempotency key apart from any other failure.
func NewDatabase(dsn string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 25
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 5
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	return db, nil
}

// CloseDatabase releases every pooled connection.
func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates / updates all tables and then applies the idempotent
// Postgres-only patches that AutoMigrate cannot express. Test databases
// (SQLite) only get the AutoMigrate step.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Producto{},
		&model.UnidadSerial{},
		&model.InventarioParcial{},
		&model.Venta{},
		&model.VentaItem{},
		&model.MovimientoStock{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL statements. Each statement uses
// IF NOT EXISTS semantics so re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"ticket number sequence", `CREATE SEQUENCE IF NOT EXISTS ventas_numero_seq`},
		{"sync ticket sequence with existing sales", `
DO $$ BEGIN
  IF (SELECT COALESCE(MAX(numero), 0) FROM ventas) >= (SELECT last_value FROM ventas_numero_seq) THEN
    PERFORM setval('ventas_numero_seq', (SELECT MAX(numero) FROM ventas));
  END IF;
END $$`},
		// Stock can only go negative through a bug; keep the DB honest.
		{"check productos.stock_actual >= 0", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_productos_stock_no_negativo') THEN
    ALTER TABLE productos ADD CONSTRAINT chk_productos_stock_no_negativo CHECK (stock_actual >= 0);
  END IF;
END $$`},
		{"partial index on active remnants", `
CREATE INDEX IF NOT EXISTS idx_inventario_parcial_activos
    ON inventario_parcial (producto_id)
    WHERE activo = true`},
		{"partial index on available serials", `
CREATE INDEX IF NOT EXISTS idx_unidades_serial_disponibles
    ON unidades_serial (producto_id)
    WHERE estado = 'disponible'`},
		{"check unidades_serial.estado", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_unidades_serial_estado') THEN
    ALTER TABLE unidades_serial ADD CONSTRAINT chk_unidades_serial_estado
      CHECK (estado IN ('disponible', 'vendido'));
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
