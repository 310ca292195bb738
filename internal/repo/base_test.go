package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

type row struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	Label     string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&row{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func seedRows(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		r := row{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Second), Label: string(rune('a' + i))}
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func rowKey(r row) pagination.Cursor { return pagination.Cursor{At: r.CreatedAt, ID: r.ID} }

func labels(rows []row) string {
	out := ""
	for _, r := range rows {
		out += r.Label
	}
	return out
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}
	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestKeysetPageWalksAllRows(t *testing.T) {
	db := newTestDB(t)
	seedRows(t, db, 5)
	ctx := context.Background()

	var seen string
	cursor := ""
	for i := 0; i < 5; i++ {
		page, next, err := KeysetPage[row](db.WithContext(ctx).Model(&row{}), "created_at", pagination.Params{Limit: 2, Cursor: cursor}, rowKey)
		if err != nil {
			t.Fatalf("page %d: %v", i, err)
		}
		seen += labels(page)
		if next == "" {
			break
		}
		cursor = next
	}
	if seen != "abcde" {
		t.Fatalf("expected abcde, got %q", seen)
	}
}

func TestKeysetPageUnpagedReturnsEverything(t *testing.T) {
	db := newTestDB(t)
	seedRows(t, db, 3)

	rows, next, err := KeysetPage[row](db.Model(&row{}), "created_at", pagination.Params{}, rowKey)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if labels(rows) != "abc" || next != "" {
		t.Fatalf("unexpected result %q next=%q", labels(rows), next)
	}
}

func TestKeysetPageRejectsBadCursor(t *testing.T) {
	db := newTestDB(t)

	_, _, err := KeysetPage[row](db.Model(&row{}), "created_at", pagination.Params{Cursor: "%%%"}, rowKey)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
}
