package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	ddl := `CREATE TABLE media_items (
		id TEXT PRIMARY KEY,
		uploader_id TEXT NOT NULL,
		storage_key TEXT NOT NULL UNIQUE,
		thumbnail_key TEXT,
		file_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		ref_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("create media_items table: %v", err)
	}
	return conn
}

func seedItem(t *testing.T, conn *gorm.DB, refCount int) models.MediaItem {
	t.Helper()
	item := models.MediaItem{
		ID:         uuid.New(),
		UploaderID: uuid.New(),
		StorageKey: "users/u/2026/01/" + uuid.NewString() + ".jpg",
		FileName:   "photo.jpg",
		MimeType:   "image/jpeg",
		SizeBytes:  2048,
		RefCount:   refCount,
	}
	if err := conn.Create(&item).Error; err != nil {
		t.Fatalf("seed media item: %v", err)
	}
	return item
}

func TestAddRefsRelativeUpdate(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	item := seedItem(t, conn, 1)

	if err := repo.AddRefsTx(conn, item.ID, 2); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := repo.AddRefsTx(conn, item.ID, -1); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	rows, err := repo.GetByIDs(context.Background(), []uuid.UUID{item.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rows) != 1 || rows[0].RefCount != 2 {
		t.Fatalf("expected ref_count 2, got %+v", rows)
	}
}

func TestPurgeIfZeroDeletesOnlyUnreferenced(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	dead := seedItem(t, conn, 0)
	alive := seedItem(t, conn, 1)

	purged, err := repo.PurgeIfZeroTx(conn, []uuid.UUID{dead.ID, alive.ID})
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(purged) != 1 || purged[0].ID != dead.ID {
		t.Fatalf("expected only the zero-ref row purged, got %+v", purged)
	}
	if purged[0].StorageKey != dead.StorageKey {
		t.Fatalf("purged row must carry its storage key for blob cleanup")
	}

	remaining, err := repo.GetByIDs(context.Background(), []uuid.UUID{dead.ID, alive.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != alive.ID {
		t.Fatalf("referenced row must survive, got %+v", remaining)
	}
}

func TestPurgeIfZeroEmptySet(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)

	purged, err := repo.PurgeIfZeroTx(conn, nil)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(purged) != 0 {
		t.Fatalf("expected no rows, got %+v", purged)
	}
}

func TestDeleteRemovesRows(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	item := seedItem(t, conn, 3)

	if err := repo.DeleteTx(conn, []uuid.UUID{item.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, err := repo.GetByIDs(context.Background(), []uuid.UUID{item.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected row removed regardless of ref count, got %+v", rows)
	}
}
