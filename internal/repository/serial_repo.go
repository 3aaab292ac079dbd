package repository

import (
	"context"
	"time"

	"tallerfranco/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SerialRepository interface {
	CreateBatch(ctx context.Context, unidades []model.UnidadSerial) error
	FindByCodigo(ctx context.Context, productoID uuid.UUID, codigo string) (*model.UnidadSerial, error)
	ListByProducto(ctx context.Context, productoID uuid.UUID, estado string) ([]model.UnidadSerial, error)

	// MarcarVendidoTx flips an available serial to sold. The state guard lives
	// in the same UPDATE, so it returns false when another sale got there first.
	MarcarVendidoTx(tx *gorm.DB, productoID uuid.UUID, codigo string, ventaID uuid.UUID, garantiaInicio, garantiaFin *time.Time) (bool, error)
	// LiberarTx returns a serial to the available pool unconditionally.
	LiberarTx(tx *gorm.DB, productoID uuid.UUID, codigo string) error
}

type serialRepo struct{ db *gorm.DB }

func NewSerialRepository(db *gorm.DB) SerialRepository { return &serialRepo{db: db} }

func (r *serialRepo) CreateBatch(ctx context.Context, unidades []model.UnidadSerial) error {
	if len(unidades) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&unidades).Error
}

func (r *serialRepo) FindByCodigo(ctx context.Context, productoID uuid.UUID, codigo string) (*model.UnidadSerial, error) {
	var u model.UnidadSerial
	err := r.db.WithContext(ctx).
		Where("producto_id = ? AND codigo_serial = ?", productoID, codigo).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *serialRepo) ListByProducto(ctx context.Context, productoID uuid.UUID, estado string) ([]model.UnidadSerial, error) {
	q := r.db.WithContext(ctx).Where("producto_id = ?", productoID)
	if estado != "" {
		q = q.Where("estado = ?", estado)
	}
	var unidades []model.UnidadSerial
	err := q.Order("fecha_ingreso ASC").Find(&unidades).Error
	return unidades, err
}

func (r *serialRepo) MarcarVendidoTx(tx *gorm.DB, productoID uuid.UUID, codigo string, ventaID uuid.UUID, garantiaInicio, garantiaFin *time.Time) (bool, error) {
	res := tx.Model(&model.UnidadSerial{}).
		Where("producto_id = ? AND codigo_serial = ? AND estado = ?", productoID, codigo, model.SerialDisponible).
		Updates(map[string]interface{}{
			"estado":          model.SerialVendido,
			"venta_id":        ventaID,
			"garantia_inicio": garantiaInicio,
			"garantia_fin":    garantiaFin,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *serialRepo) LiberarTx(tx *gorm.DB, productoID uuid.UUID, codigo string) error {
	return tx.Model(&model.UnidadSerial{}).
		Where("producto_id = ? AND codigo_serial = ?", productoID, codigo).
		Updates(map[string]interface{}{
			"estado":          model.SerialDisponible,
			"venta_id":        nil,
			"garantia_inicio": nil,
			"garantia_fin":    nil,
		}).Error
}
