package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 3 {
		r := NewRecord("masks")
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		r.Channels = []Channel{
			{Name: "Red", Status: StatusOK, Commands: 10},
			{Name: "Mauve", Status: StatusSkipped},
		}
		if err := store.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID)
	}

	got, err := store.Get(ctx, ids[1])
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "masks" || len(got.Channels) != 2 || got.Succeeded() != 1 {
		t.Errorf("Get() = %+v", got)
	}

	list, err := store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Errorf("List(2) returned %d records in the wrong order", len(list))
	}
}

func TestFileStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{NewRecord("").ID, "../../etc/passwd", ""} {
		if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
	if err := store.Save(ctx, &Record{ID: "not-a-uuid"}); err == nil {
		t.Error("Save with an invalid id should fail")
	}
}

func TestMongoConfigValidate(t *testing.T) {
	var cfg MongoConfig
	if err := cfg.Validate(); err == nil {
		t.Error("empty URI should fail")
	}
	cfg.URI = "mongodb://localhost:27017"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Database != DefaultMongoDatabase || cfg.Collection != DefaultMongoCollection {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
