package registry

import (
	"context"
	"testing"
	"time"

	"agenthub/internal/logging"
	"agenthub/pkg/types"
)

type fakeTransport struct{ closed bool }

func (f *fakeTransport) Send(context.Context, *types.Message) error       { return nil }
func (f *fakeTransport) Receive(ctx context.Context) (*types.Message, error) { <-ctx.Done(); return nil, ctx.Err() }
func (f *fakeTransport) Close() error                                     { f.closed = true; return nil }

func deviceClient(id string) *types.Client {
	return &types.Client{ID: id, Kind: types.ClientKindDevice, Platform: "linux", ConnectedAt: time.Now()}
}

func TestAddEvictsPriorEntryUnderSameID(t *testing.T) {
	r := New(logging.Nop())
	t1 := &fakeTransport{}
	t2 := &fakeTransport{}

	_, hadPrev := r.Add(deviceClient("dev-A"), t1)
	if hadPrev {
		t.Fatal("first Add should report no prior entry")
	}

	evicted, hadPrev := r.Add(deviceClient("dev-A"), t2)
	if !hadPrev {
		t.Fatal("second Add under the same id should report an evicted entry")
	}
	if evicted.Transport != t1 {
		t.Fatal("evicted entry should be the first transport")
	}

	entry, ok := r.Get("dev-A")
	if !ok || entry.Transport != t2 {
		t.Fatal("registry should now hold the second transport")
	}
}

func TestGetDeviceRejectsNonDeviceKind(t *testing.T) {
	r := New(logging.Nop())
	r.Add(&types.Client{ID: "orc-1", Kind: types.ClientKindConstellation, ConnectedAt: time.Now()}, &fakeTransport{})

	if _, ok := r.GetDevice("orc-1"); ok {
		t.Fatal("GetDevice should reject a constellation entry")
	}
}

func TestDrainSessionsIsAtomicAndExclusive(t *testing.T) {
	r := New(logging.Nop())
	r.AddDeviceSession("dev-A", "sess-1")
	r.AddDeviceSession("dev-A", "sess-2")
	r.AddOrchestratorSession("orc-1", "sess-1")

	drained := r.DrainDeviceSessions("dev-A")
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained sessions, got %d", len(drained))
	}

	if drained2 := r.DrainDeviceSessions("dev-A"); len(drained2) != 0 {
		t.Fatal("second drain should return nothing — sessions already removed")
	}

	orcID, ok := r.FindOrchestratorForSession("sess-1")
	if !ok || orcID != "orc-1" {
		t.Fatalf("expected orc-1 still bound to sess-1, got %s, %v", orcID, ok)
	}
}

func TestRemoveSessionDropsEmptySetEntirely(t *testing.T) {
	r := New(logging.Nop())
	r.AddOrchestratorSession("orc-1", "sess-1")
	r.RemoveOrchestratorSession("orc-1", "sess-1")

	if _, ok := r.FindOrchestratorForSession("sess-1"); ok {
		t.Fatal("session should no longer be found after removal")
	}
}

func TestDeviceSystemInfoReturnsDefensiveCopy(t *testing.T) {
	r := New(logging.Nop())
	client := deviceClient("dev-A")
	client.SystemInfo = map[string]interface{}{"os": "linux"}
	r.Add(client, &fakeTransport{})

	info, ok := r.DeviceSystemInfo("dev-A")
	if !ok {
		t.Fatal("expected system info to be present")
	}
	info["os"] = "tampered"

	info2, _ := r.DeviceSystemInfo("dev-A")
	if info2["os"] != "linux" {
		t.Fatal("mutating a returned snapshot must not affect the stored value")
	}
}

func TestStatsCountsByKind(t *testing.T) {
	r := New(logging.Nop())
	r.Add(deviceClient("dev-A"), &fakeTransport{})
	r.Add(&types.Client{ID: "orc-1", Kind: types.ClientKindConstellation, ConnectedAt: time.Now()}, &fakeTransport{})
	r.AddOrchestratorSession("orc-1", "sess-1")

	stats := r.Stats()
	if stats["devices"] != 1 || stats["orchestrators"] != 1 {
		t.Fatalf("unexpected kind counts: %+v", stats)
	}
	if stats["active_sessions"] != 1 {
		t.Fatalf("expected 1 active session, got %d", stats["active_sessions"])
	}
}
