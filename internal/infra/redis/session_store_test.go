package redis

import (
	"testing"
	"time"

	"cuequiz-service/internal/app"
	"cuequiz-service/internal/catalog"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)
	runner := app.NewRunner(app.NewSession("s-1", catalog.Default(), app.Options{}), app.RunnerDeps{Logger: zerolog.Nop()})

	store.Put(runner)
	if !mr.Exists("quiz:session:s-1") {
		t.Fatalf("expected redis key to be set")
	}
	if _, ok := store.Get("s-1"); !ok {
		t.Fatalf("expected runner tracked locally")
	}

	store.Delete("s-1")
	if mr.Exists("quiz:session:s-1") {
		t.Fatalf("expected redis key to be removed")
	}
}
