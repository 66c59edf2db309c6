package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	appErr "github.com/neoncad/engine/pkg/errors"
)

// BaseRepository defines common CRUD operations.
type BaseRepository[T any] interface {
	Create(ctx context.Context, obj *T) error
	GetByID(ctx context.Context, id any, dest *T) error
	Update(ctx context.Context, obj *T) error
	Delete(ctx context.Context, id any) error
}

// baseRepository names the resource it stores so errors read
// "export 7c1e... not found" rather than a generic message.
type baseRepository[T any] struct {
	db       *gorm.DB
	resource string
}

func NewBaseRepository[T any](db *gorm.DB, resource string) BaseRepository[T] {
	return &baseRepository[T]{db: db, resource: resource}
}

func (r *baseRepository[T]) Create(ctx context.Context, obj *T) error {
	return translate(r.db.WithContext(ctx).Create(obj).Error, "create "+r.resource)
}

func (r *baseRepository[T]) GetByID(ctx context.Context, id any, dest *T) error {
	err := r.db.WithContext(ctx).First(dest, "id = ?", id).Error
	return lookup(err, "get "+r.resource, "%s %v not found", r.resource, id)
}

func (r *baseRepository[T]) Update(ctx context.Context, obj *T) error {
	return translate(r.db.WithContext(ctx).Save(obj).Error, "update "+r.resource)
}

func (r *baseRepository[T]) Delete(ctx context.Context, id any) error {
	var t T
	res := r.db.WithContext(ctx).Delete(&t, "id = ?", id)
	return affected(res, "delete "+r.resource, "%s %v not found", r.resource, id)
}

// translate maps a gorm error onto the application codes. Unique
// violations become CodeAlreadyExists; anything else is internal.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return appErr.Wrap(err, appErr.CodeAlreadyExists, op+" failed: already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return appErr.Wrap(err, appErr.CodeNotFound, op+" failed: not found")
	}
	return appErr.Wrap(err, appErr.CodeInternal, op+" failed")
}

// lookup is translate for single-row reads, with a caller supplied
// not-found message.
func lookup(err error, op, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appErr.New(appErr.CodeNotFound, fmt.Sprintf(format, args...))
	}
	return translate(err, op)
}

// affected checks a write that must touch at least one row.
func affected(res *gorm.DB, op, format string, args ...any) error {
	if res.Error != nil {
		return translate(res.Error, op)
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, fmt.Sprintf(format, args...))
	}
	return nil
}
