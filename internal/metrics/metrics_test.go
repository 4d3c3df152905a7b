package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetActiveChannelsReflectsGauge(t *testing.T) {
	r := New()
	r.SetActiveChannels(3)
	if got := testutil.ToFloat64(r.activeChannels); got != 3 {
		t.Fatalf("expected gauge 3, got %v", got)
	}
}

func TestCountersIncrement(t *testing.T) {
	r := New()
	r.IncBlockSequence()
	r.IncBlockSequence()
	r.IncBlockGap()
	r.IncSendError()

	if got := testutil.ToFloat64(r.blockSequence); got != 2 {
		t.Fatalf("expected blockSequence 2, got %v", got)
	}
	if got := testutil.ToFloat64(r.blockGaps); got != 1 {
		t.Fatalf("expected blockGaps 1, got %v", got)
	}
	if got := testutil.ToFloat64(r.sendErrors); got != 1 {
		t.Fatalf("expected sendErrors 1, got %v", got)
	}
}

func TestSetNotchAttenuationLabelsByBin(t *testing.T) {
	r := New()
	r.SetNotchAttenuation(42, -18.5)
	if got := testutil.ToFloat64(r.notchAtten.WithLabelValues("42")); got != -18.5 {
		t.Fatalf("expected -18.5, got %v", got)
	}
}

func TestNilRegistryMethodsAreNoops(t *testing.T) {
	var r *Registry
	r.SetActiveChannels(5)
	r.IncBlockSequence()
	r.IncBlockGap()
	r.IncSendError()
	r.SetNotchAttenuation(1, 2)
	r.SetDriverUp(true)
}
