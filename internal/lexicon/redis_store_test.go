package lexicon

import (
	"context"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestAddAndListGlobalWords(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	for _, w := range []string{"Veylan", "aelric", "  Eldoria  ", "aelric"} {
		if err := store.AddGlobalWord(ctx, w); err != nil {
			t.Fatalf("AddGlobalWord(%q): %v", w, err)
		}
	}

	words, err := store.GlobalWords(ctx)
	if err != nil {
		t.Fatalf("GlobalWords: %v", err)
	}
	want := []string{"aelric", "eldoria", "veylan"}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("GlobalWords = %v, want %v", words, want)
	}
}

func TestAddGlobalWordRejectsEmpty(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	if err := store.AddGlobalWord(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank word")
	}
}

func TestMergedWords(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.AddGlobalWord(ctx, "shared"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddGlobalWord(ctx, "global-only"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddProjectWord(ctx, "proj_1", "shared"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddProjectWord(ctx, "proj_1", "project-only"); err != nil {
		t.Fatal(err)
	}

	merged, err := store.MergedWords(ctx, "proj_1")
	if err != nil {
		t.Fatalf("MergedWords: %v", err)
	}
	want := []string{"global-only", "project-only", "shared"}
	if !reflect.DeepEqual(merged, want) {
		t.Fatalf("MergedWords = %v, want %v", merged, want)
	}
}

func TestProjectIsolation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.AddProjectWord(ctx, "proj_a", "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddProjectWord(ctx, "proj_b", "beta"); err != nil {
		t.Fatal(err)
	}

	a, err := store.ProjectWords(ctx, "proj_a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, []string{"alpha"}) {
		t.Fatalf("proj_a words = %v", a)
	}

	b, err := store.ProjectWords(ctx, "proj_b")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(b, []string{"beta"}) {
		t.Fatalf("proj_b words = %v", b)
	}
}

func TestRemoveWords(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.AddGlobalWord(ctx, "ephemeral"); err != nil {
		t.Fatal(err)
	}
	if err := store.RemoveGlobalWord(ctx, "Ephemeral"); err != nil {
		t.Fatalf("RemoveGlobalWord: %v", err)
	}
	words, err := store.GlobalWords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 0 {
		t.Fatalf("words after remove = %v", words)
	}

	// Removing an absent word is not an error.
	if err := store.RemoveGlobalWord(ctx, "never-added"); err != nil {
		t.Errorf("remove absent word: %v", err)
	}
}

func TestDeleteProjectWords(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.AddProjectWord(ctx, "proj_x", "word"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteProjectWords(ctx, "proj_x"); err != nil {
		t.Fatalf("DeleteProjectWords: %v", err)
	}
	words, err := store.ProjectWords(ctx, "proj_x")
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 0 {
		t.Fatalf("words after delete = %v", words)
	}
}
