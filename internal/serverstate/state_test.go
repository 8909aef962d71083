package serverstate

import "testing"

func TestMemoryStore(t *testing.T) {
	prev := current()
	UseStore(NewMemoryStore())
	defer UseStore(prev)

	if got := GetState(); got != StatusNotReady {
		t.Fatalf("initial state = %q; want %q", got, StatusNotReady)
	}
	if IsDraining() {
		t.Fatalf("initial draining = true; want false")
	}

	SetState(StatusReady)
	if got := GetState(); got != StatusReady {
		t.Fatalf("state after SetState = %q; want %q", got, StatusReady)
	}
	if Snapshot().Since.IsZero() {
		t.Fatalf("since not stamped")
	}

	StartDrain()
	if got := GetState(); got != StatusDraining {
		t.Fatalf("state after StartDrain = %q; want %q", got, StatusDraining)
	}
	if !IsDraining() {
		t.Fatalf("IsDraining = false; want true")
	}

	SetState(StatusNotReady)
	if !IsDraining() {
		t.Fatalf("not_ready cleared the drain flag")
	}
	SetState(StatusReady)
	if IsDraining() {
		t.Fatalf("ready kept the drain flag")
	}
}

func TestUseStoreIgnoresNil(t *testing.T) {
	prev := current()
	UseStore(nil)
	if current() != prev {
		t.Fatalf("nil store replaced the active one")
	}
}
