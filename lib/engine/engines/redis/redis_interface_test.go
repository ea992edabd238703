package redis

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/docbench/docbench/lib/engine"
	enginetesting "github.com/docbench/docbench/lib/engine/testing"
)

// redisAddr returns the address of a test Redis instance, or "" if none is
// configured. The suite is skipped without one.
func redisAddr() string {
	_ = godotenv.Load("../../../../.env")
	return os.Getenv("DOCBENCH_REDIS_ADDR")
}

var dbCounter atomic.Int64

func targetFactory(addr string) enginetesting.TargetFactory {
	return func() string {
		return fmt.Sprintf("remote:%s/enginetest-%d-%d", addr, time.Now().UnixNano(), dbCounter.Add(1))
	}
}

func TestClientOptions(t *testing.T) {
	target, err := engine.ParseTarget("remote:localhost:2424/bench")
	if err != nil {
		t.Fatalf("ParseTarget failed: %v", err)
	}

	// Placeholder credentials mean no authentication.
	opts := clientOptions(target, placeholderUser, placeholderPassword)
	if opts.Addr != "localhost:2424" {
		t.Errorf("expected addr localhost:2424, got %q", opts.Addr)
	}
	if opts.Username != "" || opts.Password != "" {
		t.Errorf("expected placeholder credentials to map to no auth, got %q/%q", opts.Username, opts.Password)
	}

	// Real credentials are passed through.
	opts = clientOptions(target, "bench", "secret")
	if opts.Username != "bench" || opts.Password != "secret" {
		t.Errorf("expected credentials to be threaded through, got %q/%q", opts.Username, opts.Password)
	}
}

// TestOpenDiscardsPreAuthClient covers the bootstrap order of one session:
// lifecycle calls before Open dial without credentials, so the cached
// client must be discarded and re-dialed once Open supplies them.
func TestOpenDiscardsPreAuthClient(t *testing.T) {
	target, err := engine.ParseTarget("remote:127.0.0.1:1/bench")
	if err != nil {
		t.Fatalf("ParseTarget failed: %v", err)
	}

	db := &database{target: target, ctx: context.Background()}
	db.client = goredis.NewClient(clientOptions(target, "", ""))

	db.user = "bench"
	db.password = "secret"

	// The re-dial against the unreachable target must fail instead of
	// silently keeping the unauthenticated client.
	if err := db.ensureClient(); err == nil {
		t.Fatalf("expected a dial error, the stale unauthenticated client was reused")
	}
	if db.client != nil {
		t.Errorf("expected the stale client to be discarded on credential change")
	}
}

func Test(t *testing.T) {
	addr := redisAddr()
	if addr == "" {
		t.Skip("DOCBENCH_REDIS_ADDR not set")
	}

	enginetesting.RunEngineTests(t, "RedisEngine", targetFactory(addr))
}

func Benchmark(b *testing.B) {
	addr := redisAddr()
	if addr == "" {
		b.Skip("DOCBENCH_REDIS_ADDR not set")
	}

	enginetesting.RunEngineBenchmarks(b, "RedisEngine", targetFactory(addr))
}
