package frontend

import (
	"context"
	"testing"
	"time"

	"github.com/cwsl/radiod/internal/filter"
)

func TestSigGenProducesSamples(t *testing.T) {
	d, err := New("sig_gen")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	status, err := d.Setup(map[string]string{"samprate": "48000", "tone": "1000"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !status.IsReal || status.SampRate != 48000 {
		t.Fatalf("unexpected status: %+v", status)
	}

	in, err := filter.NewInput(960, 65, status.SampRate, true, nil)
	if err != nil {
		t.Fatalf("NewInput: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go d.Start(ctx, in)

	seq, err := in.ExecuteBlock(ctx)
	if err != nil {
		t.Fatalf("ExecuteBlock: %v", err)
	}
	if seq != 1 {
		t.Fatalf("expected first sequence number 1, got %d", seq)
	}
}

func TestUnknownDriverIsHardwareSetupError(t *testing.T) {
	if _, err := New("nonexistent_radio"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestStubDriversAreRegisteredButUnusable(t *testing.T) {
	for _, name := range []string{"rx888", "airspy", "airspyhf", "funcube", "rtlsdr", "sdrplay"} {
		d, err := New(name)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if _, err := d.Setup(nil); err == nil {
			t.Fatalf("expected %s.Setup to fail without real hardware", name)
		}
	}
}
