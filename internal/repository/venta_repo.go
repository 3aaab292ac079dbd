package repository

import (
	"context"
	"strings"
	"time"

	"tallerfranco/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VentaQuery is the parsed, typed filter for listing sales. Every field is
// optional; each one adds one parameterized clause.
type VentaQuery struct {
	Desde     *time.Time
	Hasta     *time.Time // exclusive
	Estado    string
	Cliente   string
	UsuarioID *uuid.UUID
	Page      int
	Limit     int
}

type VentaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Venta, error)
	List(ctx context.Context, q VentaQuery) ([]model.Venta, int64, error)

	// Used inside transactions; callers must pass the tx instance
	CreateTx(tx *gorm.DB, v *model.Venta) error
	CreateItemsTx(tx *gorm.DB, items []model.VentaItem) error
	DeleteItemsTx(tx *gorm.DB, ventaID uuid.UUID) error
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	UpdateHeaderTx(tx *gorm.DB, v *model.Venta) error
	// AnularTx flips the sale to anulada unless it already is; false means it was.
	AnularTx(tx *gorm.DB, id uuid.UUID, motivo *string, at time.Time) (bool, error)
	NextNumeroTx(tx *gorm.DB) (int, error)

	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) DB() *gorm.DB { return r.db }

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Preload("Items.Producto")
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	if err := preloadItems(r.db.WithContext(ctx)).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ventaRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Venta, error) {
	var v model.Venta
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ventaRepo) List(ctx context.Context, q VentaQuery) ([]model.Venta, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Venta{})

	if q.Estado != "" && q.Estado != "all" {
		query = query.Where("estado = ?", q.Estado)
	}
	if q.Desde != nil {
		query = query.Where("created_at >= ?", *q.Desde)
	}
	if q.Hasta != nil {
		query = query.Where("created_at < ?", *q.Hasta)
	}
	if q.Cliente != "" {
		query = query.Where("LOWER(cliente) LIKE ?", "%"+strings.ToLower(q.Cliente)+"%")
	}
	if q.UsuarioID != nil {
		query = query.Where("usuario_id = ?", *q.UsuarioID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ventas []model.Venta
	err := preloadItems(query).
		Order("created_at DESC").
		Offset((q.Page - 1) * q.Limit).Limit(q.Limit).
		Find(&ventas).Error
	return ventas, total, err
}

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Omit("Items").Create(v).Error
}

func (r *ventaRepo) CreateItemsTx(tx *gorm.DB, items []model.VentaItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Omit("Producto").Create(&items).Error
}

func (r *ventaRepo) DeleteItemsTx(tx *gorm.DB, ventaID uuid.UUID) error {
	return tx.Where("venta_id = ?", ventaID).Delete(&model.VentaItem{}).Error
}

func (r *ventaRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&v).Error
	if err != nil {
		return nil, err
	}
	if err := tx.Where("venta_id = ?", id).Order("orden ASC").Find(&v.Items).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ventaRepo) UpdateHeaderTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Model(&model.Venta{}).Where("id = ?", v.ID).Updates(map[string]interface{}{
		"cliente":    v.Cliente,
		"estado":     v.Estado,
		"subtotal":   v.Subtotal,
		"descuento":  v.Descuento,
		"total":      v.Total,
		"updated_at": time.Now(),
	}).Error
}

func (r *ventaRepo) AnularTx(tx *gorm.DB, id uuid.UUID, motivo *string, at time.Time) (bool, error) {
	res := tx.Model(&model.Venta{}).
		Where("id = ? AND estado <> ?", id, model.VentaAnulada).
		Updates(map[string]interface{}{
			"estado":           model.VentaAnulada,
			"motivo_anulacion": motivo,
			"anulada_at":       at,
			"updated_at":       at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// NextNumeroTx returns the next ticket number. Postgres uses a sequence so
// concurrent sales never collide; other dialects (tests) fall back to MAX+1.
func (r *ventaRepo) NextNumeroTx(tx *gorm.DB) (int, error) {
	var num int
	if tx.Dialector.Name() == "postgres" {
		err := tx.Raw("SELECT nextval('ventas_numero_seq')").Scan(&num).Error
		return num, err
	}
	err := tx.Raw("SELECT COALESCE(MAX(numero), 0) + 1 FROM ventas").Scan(&num).Error
	return num, err
}
