// Package store holds the small set of generic record operations shared by
// the services. Every query is scoped to the owning user, so records that
// belong to someone else look exactly like records that do not exist.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "budgetbook/internal/errors"
)

// Order describes a single ORDER BY column.
type Order struct {
	Field string
	Desc  bool
}

// ByCreatedDesc orders newest records first.
var ByCreatedDesc = Order{Field: "created_at", Desc: true}

// ByDateDesc orders dated records (expenses, incomes) newest first.
var ByDateDesc = Order{Field: "date", Desc: true}

func (o Order) apply(db *gorm.DB) *gorm.DB {
	if o.Field == "" {
		return db
	}
	db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Field}, Desc: o.Desc})
	if o.Field == "created_at" {
		return db
	}
	// Ties fall back to insertion order so results are stable.
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: o.Desc})
}

// Translate maps a gorm error onto an AppError. notFound is returned for
// gorm.ErrRecordNotFound; it may be nil when a missing row is impossible.
func Translate(err error, notFound *apperrors.AppError) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return apperrors.Wrap(apperrors.ErrInvalidInput, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.ErrRequestTimeout, err)
	default:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

// Insert persists rec. The model's BeforeCreate hook assigns the id.
func Insert[T any](ctx context.Context, db *gorm.DB, rec *T) error {
	return Translate(db.WithContext(ctx).Create(rec).Error, nil)
}

// FindOwned loads the record with the given id owned by userID.
func FindOwned[T any](ctx context.Context, db *gorm.DB, userID, id string, notFound *apperrors.AppError) (*T, error) {
	var rec T
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&rec).Error
	if err != nil {
		return nil, Translate(err, notFound)
	}
	return &rec, nil
}

// QueryAll returns every record of T owned by userID in the given order.
// The result is never nil.
func QueryAll[T any](ctx context.Context, db *gorm.DB, userID string, order Order) ([]T, error) {
	recs := []T{}
	q := order.apply(db.WithContext(ctx).Where("user_id = ?", userID))
	if err := q.Find(&recs).Error; err != nil {
		return nil, Translate(err, nil)
	}
	return recs, nil
}

// Update applies fields to the record with the given id owned by userID.
func Update[T any](ctx context.Context, db *gorm.DB, userID, id string, fields map[string]any, notFound *apperrors.AppError) error {
	if len(fields) == 0 {
		return nil
	}
	var model T
	result := db.WithContext(ctx).Model(&model).Where("id = ? AND user_id = ?", id, userID).Updates(fields)
	if result.Error != nil {
		return Translate(result.Error, notFound)
	}
	if result.RowsAffected == 0 {
		return notFound
	}
	return nil
}

// DeleteByID soft-deletes the record with the given id owned by userID.
func DeleteByID[T any](ctx context.Context, db *gorm.DB, userID, id string, notFound *apperrors.AppError) error {
	var model T
	result := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model)
	if result.Error != nil {
		return Translate(result.Error, notFound)
	}
	if result.RowsAffected == 0 {
		return notFound
	}
	return nil
}
