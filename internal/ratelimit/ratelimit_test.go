package ratelimit

import "testing"

func TestAllowBlocksAfterLimit(t *testing.T) {
	l := New(3)
	for i := 0; i < 3; i++ {
		if !l.Allow("dev-A") {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if l.Allow("dev-A") {
		t.Fatal("4th call within the window should be blocked")
	}
}

func TestAllowTracksClientsIndependently(t *testing.T) {
	l := New(1)
	if !l.Allow("dev-A") {
		t.Fatal("first call for dev-A should be allowed")
	}
	if !l.Allow("dev-B") {
		t.Fatal("dev-B should have its own independent budget")
	}
}

func TestForgetResetsClient(t *testing.T) {
	l := New(1)
	l.Allow("dev-A")
	if l.Allow("dev-A") {
		t.Fatal("second call should be blocked before Forget")
	}
	l.Forget("dev-A")
	if !l.Allow("dev-A") {
		t.Fatal("call after Forget should be allowed again")
	}
}
