package memory

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"simcore/internal/blob/core"
)

func TestPutGetDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	info, err := store.Put(ctx, "exports/run.json", strings.NewReader("payload"), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" {
		t.Fatalf("info = %+v", info)
	}
	if _, err := store.Put(ctx, "exports/run.json", strings.NewReader("other"), core.PutOptions{}); err == nil {
		t.Fatalf("overwrite succeeded")
	}

	got, rc, err := store.Get(ctx, "exports/run.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "payload" || got.ContentType != "application/json" {
		t.Fatalf("get = %q, %+v", data, got)
	}

	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("get missing = %v, want ErrNotExist", err)
	}

	removed, err := store.Delete(ctx, "exports/run.json")
	if err != nil || !removed {
		t.Fatalf("delete = %v, %v", removed, err)
	}
	if removed, _ := store.Delete(ctx, "exports/run.json"); removed {
		t.Fatalf("second delete reported removal")
	}
}

func TestListSortedByKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, key := range []string{"b", "a", "prefix/z", "prefix/y"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "prefix/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "prefix/y" || infos[1].Key != "prefix/z" {
		t.Fatalf("list = %+v", infos)
	}
}

func TestPresignUnsupported(t *testing.T) {
	store := NewStore()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("presign = %v, want ErrUnsupported", err)
	}
}
