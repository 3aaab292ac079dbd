package repository

import (
	"context"

	"tallerfranco/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ParcialRepository interface {
	List(ctx context.Context, productoID *uuid.UUID, soloActivos bool) ([]model.InventarioParcial, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.InventarioParcial, error)

	CreateTx(tx *gorm.DB, p *model.InventarioParcial) error
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.InventarioParcial, error)
	// AjustarTx adds delta to cantidad_restante and sets the active flag.
	AjustarTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal, activo bool) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
}

type parcialRepo struct{ db *gorm.DB }

func NewParcialRepository(db *gorm.DB) ParcialRepository { return &parcialRepo{db: db} }

func (r *parcialRepo) List(ctx context.Context, productoID *uuid.UUID, soloActivos bool) ([]model.InventarioParcial, error) {
	q := r.db.WithContext(ctx).Model(&model.InventarioParcial{}).Preload("Producto")
	if productoID != nil {
		q = q.Where("producto_id = ?", *productoID)
	}
	if soloActivos {
		q = q.Where("activo = ?", true)
	}
	var parciales []model.InventarioParcial
	err := q.Order("created_at ASC").Find(&parciales).Error
	return parciales, err
}

func (r *parcialRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.InventarioParcial, error) {
	var p model.InventarioParcial
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTx inserts the remnant. activo has a column default, so an inactive
// remnant is written in two steps.
func (r *parcialRepo) CreateTx(tx *gorm.DB, p *model.InventarioParcial) error {
	activo := p.Activo
	if err := tx.Create(p).Error; err != nil {
		return err
	}
	if !activo {
		p.Activo = false
		return tx.Model(&model.InventarioParcial{}).Where("id = ?", p.ID).Update("activo", false).Error
	}
	return nil
}

func (r *parcialRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.InventarioParcial, error) {
	var p model.InventarioParcial
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *parcialRepo) AjustarTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal, activo bool) error {
	return tx.Model(&model.InventarioParcial{}).Where("id = ?", id).Updates(map[string]interface{}{
		"cantidad_restante": gorm.Expr("cantidad_restante + ?", delta),
		"activo":            activo,
	}).Error
}

func (r *parcialRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Where("id = ?", id).Delete(&model.InventarioParcial{}).Error
}
