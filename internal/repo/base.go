package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

// ErrInvalidCursor is returned for cursors that cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Base holds the connection shared by the domain repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB scopes the connection to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// KeysetPage orders query by (column, id) and returns one page plus the cursor of the
// next one. Zero params return every row with an empty cursor.
func KeysetPage[T any](query *gorm.DB, column string, params pagination.Params, key func(T) pagination.Cursor) ([]T, string, error) {
	query = query.Order(column + " ASC").Order("id ASC")

	var rows []T
	if !params.Paged() {
		if err := query.Find(&rows).Error; err != nil {
			return nil, "", err
		}
		return rows, "", nil
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if cursor != nil {
		query = query.Where(
			fmt.Sprintf("%s > ? OR (%s = ? AND id > ?)", column, column),
			cursor.At, cursor.At, cursor.ID,
		)
	}
	if err := query.Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, params.Limit, key)
	return page, next, nil
}
