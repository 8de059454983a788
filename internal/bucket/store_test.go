//go:build integration

package bucket

import (
	"context"
	"path/filepath"
	"testing"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buckets.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open bucket store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStore_SaveAndLoadMap(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	keys := []string{"b", "a", "c"}
	values := map[string]record{
		"a": {Name: "alpha", Count: 1},
		"b": {Name: "beta", Count: 2},
		"c": {Name: "gamma", Count: 3},
	}
	if err := SaveMap(ctx, s, WikiPages, keys, values); err != nil {
		t.Fatalf("SaveMap failed: %v", err)
	}

	gotKeys, gotValues, err := LoadMap[record](ctx, s, WikiPages)
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}
	if len(gotKeys) != 3 || gotKeys[0] != "b" || gotKeys[1] != "a" || gotKeys[2] != "c" {
		t.Errorf("expected save order [b a c], got %v", gotKeys)
	}
	if gotValues["c"].Name != "gamma" || gotValues["c"].Count != 3 {
		t.Errorf("unexpected value for c: %+v", gotValues["c"])
	}
}

func TestStore_SaveReplacesBucket(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := SaveMap(ctx, s, PageRevisions, []string{"1", "2"}, map[string]int{"1": 1, "2": 2}); err != nil {
		t.Fatal(err)
	}
	if err := SaveMap(ctx, s, PageRevisions, []string{"3"}, map[string]int{"3": 3}); err != nil {
		t.Fatal(err)
	}
	keys, _, err := LoadMap[int](ctx, s, PageRevisions)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "3" {
		t.Errorf("expected bucket to be replaced, got %v", keys)
	}
}

func TestStore_BucketsAreIsolated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := SaveMap(ctx, s, WikiPages, []string{"1"}, map[string]string{"1": "page"}); err != nil {
		t.Fatal(err)
	}
	entries, err := s.Load(ctx, AttachmentFiles)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty bucket, got %d entries", len(entries))
	}
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if err := SaveValue(ctx, s, Customizations, record{Name: "custom"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	v, found, err := LoadValue[record](ctx, reopened, Customizations)
	if err != nil {
		t.Fatal(err)
	}
	if !found || v.Name != "custom" {
		t.Errorf("expected persisted value, got %+v (found=%v)", v, found)
	}

	_, found, err = LoadValue[record](ctx, reopened, DiagramContents)
	if err != nil || found {
		t.Errorf("expected missing value, got found=%v err=%v", found, err)
	}
}
