package serverstate

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	rs, err := NewRedisStore(ctx, mr.Addr(), "")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer rs.Close()

	prev := current()
	UseStore(rs)
	defer UseStore(prev)

	if got := GetState(); got != StatusNotReady {
		t.Fatalf("initial state = %q; want %q", got, StatusNotReady)
	}
	SetState(StatusReady)
	StartDrain()
	if !IsDraining() {
		t.Fatalf("IsDraining = false; want true")
	}

	// a second replica sees the drain
	rs2, err := NewRedisStore(ctx, "redis://"+mr.Addr()+"/0", DefaultRedisKey)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer rs2.Close()
	if st := rs2.Load(); st.Status != StatusDraining || !st.Draining {
		t.Fatalf("persisted state = %#v; want draining", st)
	}
	if !mr.Exists(DefaultRedisKey) {
		t.Fatalf("key %q missing", DefaultRedisKey)
	}
}

func TestRedisStoreReadyAfterRestartClearsDrain(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()

	prev := current()
	defer UseStore(prev)

	first, err := NewRedisStore(ctx, mr.Addr(), "")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	UseStore(first)
	SetState(StatusReady)
	StartDrain()
	_ = first.Close()

	// the process comes back and announces itself ready
	second, err := NewRedisStore(ctx, mr.Addr(), "")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer second.Close()
	UseStore(second)
	if !IsDraining() {
		t.Fatalf("stale drain flag not visible before ready")
	}
	SetState(StatusReady)
	if st := Snapshot(); st.Status != StatusReady || st.Draining {
		t.Fatalf("after restart: %#v; want ready, not draining", st)
	}
	if st := second.Load(); st.Draining {
		t.Fatalf("persisted draining=true after ready")
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisStore(context.Background(), addr, ""); err == nil {
		t.Fatalf("expected error for closed redis")
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url    string
		addrs  int
		master string
		db     int
		tls    bool
	}{
		{"localhost:6379", 1, "", 0, false},
		{"redis://:pass@localhost:6379/1", 1, "", 1, false},
		{"rediss://host1:6379,host2:6379?db=3", 2, "", 3, true},
		{"redis-sentinel://localhost:26379/mymaster?db=2", 1, "mymaster", 2, false},
	}
	for _, tt := range tests {
		opts, err := parseRedisURL(tt.url)
		if err != nil {
			t.Fatalf("parseRedisURL(%q): %v", tt.url, err)
		}
		if len(opts.Addrs) != tt.addrs {
			t.Fatalf("%q addrs = %d; want %d", tt.url, len(opts.Addrs), tt.addrs)
		}
		if opts.MasterName != tt.master {
			t.Fatalf("%q master = %q; want %q", tt.url, opts.MasterName, tt.master)
		}
		if opts.DB != tt.db {
			t.Fatalf("%q db = %d; want %d", tt.url, opts.DB, tt.db)
		}
		if (opts.TLSConfig != nil) != tt.tls {
			t.Fatalf("%q tls = %v; want %v", tt.url, opts.TLSConfig != nil, tt.tls)
		}
	}
	if _, err := parseRedisURL("http://x"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := parseRedisURL("redis://x/abc"); err == nil {
		t.Fatalf("expected db error")
	}
}
