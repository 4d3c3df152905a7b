package channel

import "testing"

func testGeom() FrontendGeometry {
	return FrontendGeometry{N: 30000, M: 6001, SampRate: 1_200_000, IsReal: true}
}

func TestCreateRejectsDuplicateSSRC(t *testing.T) {
	r := NewRegistry(testGeom())
	p := Params{SSRC: 7040000, Freq: 504000, LifetimeBlocks: 1000}
	ch, err := r.Create(p)
	if err != nil || ch == nil {
		t.Fatalf("first create failed: %v", err)
	}
	ch2, err := r.Create(p)
	if err != nil {
		t.Fatalf("second create errored: %v", err)
	}
	if ch2 != nil {
		t.Fatalf("expected nil on duplicate SSRC create")
	}
}

func TestProbeCreateResolvesCollision(t *testing.T) {
	r := NewRegistry(testGeom())
	first, err := r.Create(Params{SSRC: 100, Freq: 504000, LifetimeBlocks: 1000})
	if err != nil || first == nil {
		t.Fatalf("setup create failed: %v", err)
	}
	second, err := r.ProbeCreate(100, Params{Freq: 505000, LifetimeBlocks: 1000})
	if err != nil {
		t.Fatalf("ProbeCreate: %v", err)
	}
	if second.SSRC() != 101 {
		t.Fatalf("expected probed SSRC 101, got %d", second.SSRC())
	}
}

func TestProbeCreateExhausted(t *testing.T) {
	r := NewRegistry(testGeom())
	for i := 0; i < MaxProbes; i++ {
		if _, err := r.Create(Params{SSRC: uint32(200 + i), Freq: 504000, LifetimeBlocks: 1000}); err != nil {
			t.Fatalf("setup create %d: %v", i, err)
		}
	}
	_, err := r.ProbeCreate(200, Params{Freq: 504000, LifetimeBlocks: 1000})
	if err == nil {
		t.Fatalf("expected SSRCExhausted error")
	}
}

func TestAtMostOneActiveChannelPerSSRC(t *testing.T) {
	r := NewRegistry(testGeom())
	ssrc := uint32(55)
	if _, err := r.Create(Params{SSRC: ssrc, Freq: 1000, LifetimeBlocks: 10}); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup, err := r.Create(Params{SSRC: ssrc, Freq: 2000, LifetimeBlocks: 10})
	if err != nil {
		t.Fatalf("dup create errored: %v", err)
	}
	if dup != nil {
		t.Fatalf("expected at most one active channel per ssrc")
	}
	found := 0
	for _, ch := range r.All() {
		if ch.SSRC() == ssrc {
			found++
		}
	}
	if found != 1 {
		t.Fatalf("expected exactly one channel with ssrc %d, found %d", ssrc, found)
	}
}

func TestIdleChannelDestroyedAfterLifetime(t *testing.T) {
	r := NewRegistry(testGeom())
	ch, err := r.Create(Params{SSRC: 9, Freq: 0, LifetimeBlocks: 3})
	if err != nil || ch == nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		r.ReapIdle()
	}
	if _, ok := r.Lookup(9); ok {
		t.Fatalf("expected channel reaped after lifetime expired")
	}
	if ch.State() != StateDestroyed {
		t.Fatalf("expected destroyed state, got %s", ch.State())
	}
}

func TestCommandResetsIdleCountdown(t *testing.T) {
	r := NewRegistry(testGeom())
	ch, err := r.Create(Params{SSRC: 10, Freq: 0, LifetimeBlocks: 3})
	if err != nil || ch == nil {
		t.Fatalf("create: %v", err)
	}
	r.ReapIdle()
	r.ReapIdle()
	r.Touch(ch) // a command arrives
	r.ReapIdle()
	if _, ok := r.Lookup(10); !ok {
		t.Fatalf("expected channel still alive after touch reset the countdown")
	}
}
