package engine

import (
	"context"
	"testing"
	"time"

	"github.com/cwsl/radiod/internal/config"
)

func baseConfig() *config.File {
	return &config.File{
		Global: config.Global{
			BlockTimeMs: 20,
			Overlap:     5,
			Status:      "127.0.0.1:0",
			Update:      1,
		},
		Hardware: config.Hardware{
			Name:   "hw0",
			Device: "sig_gen",
			Extra:  map[string]string{"samprate": "48000", "tone": "1000"},
		},
	}
}

func TestNewWithNoChannelsIsSilent(t *testing.T) {
	e, err := New(baseConfig(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Nchans() != 0 {
		t.Fatalf("expected 0 channels, got %d", e.Nchans())
	}
}

func TestNewRejectsNonIntegralBlockLength(t *testing.T) {
	cfg := baseConfig()
	cfg.Hardware.Extra = map[string]string{"samprate": "48000.5"}
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected ConfigError for non-integral block length")
	}
}

func TestNewCreatesStaticChannelWithExpectedSSRC(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels = []config.ChannelGroup{
		{Name: "wwv", Freqs: []float64{7040}, Preset: "am"},
	}
	e, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Nchans() != 1 {
		t.Fatalf("expected 1 channel, got %d", e.Nchans())
	}
	chans := e.registry.All()
	if chans[0].SSRC() != 7040 {
		t.Fatalf("expected default ssrc 7040, got %d", chans[0].SSRC())
	}
}

func TestNewResolvesSSRCCollisionByProbing(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels = []config.ChannelGroup{
		{Name: "a", Freqs: []float64{7040}, Preset: "am"},
		{Name: "b", Freqs: []float64{7040}, Preset: "am"},
	}
	e, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Nchans() != 2 {
		t.Fatalf("expected 2 channels, got %d", e.Nchans())
	}
	seen := map[uint32]bool{}
	for _, ch := range e.registry.All() {
		seen[ch.SSRC()] = true
	}
	if !seen[7040] || !seen[7041] {
		t.Fatalf("expected ssrcs 7040 and 7041, got %v", seen)
	}
}

func TestRunProcessesBlocksUntilStopRequested(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels = []config.ChannelGroup{
		{Name: "wwv", Freqs: []float64{0}, SSRC: 99, Preset: "am"},
	}
	e, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	e.RequestStop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after RequestStop")
	}
}
