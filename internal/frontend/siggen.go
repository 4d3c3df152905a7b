package frontend

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cwsl/radiod/internal/filter"
)

// SigGen is a synthetic signal source: a configurable tone plus
// optional noise floor, real-valued, at a configurable sample rate.
// Useful for exercising the filter/channel pipeline without hardware.
type SigGen struct {
	sampRate  float64
	toneHz    float64
	noiseAmpl float64
	freq      float64
}

func NewSigGen() *SigGen { return &SigGen{} }

func (s *SigGen) Setup(section map[string]string) (Status, error) {
	s.sampRate = floatOr(section["samprate"], 1_200_000)
	s.toneHz = floatOr(section["tone"], 10_000)
	s.noiseAmpl = floatOr(section["noise"], 0.01)
	return Status{SampRate: s.sampRate, IsReal: true}, nil
}

func (s *SigGen) Start(ctx context.Context, in *filter.Input) error {
	const blockSamples = 4800 // 4ms at 1.2Msps, an arbitrary producer chunk size
	phase := 0.0
	step := 2 * math.Pi * s.toneHz / s.sampRate
	ticker := time.NewTicker(time.Duration(float64(blockSamples) / s.sampRate * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		block := make([]float64, blockSamples)
		for i := range block {
			block[i] = math.Sin(phase) + s.noiseAmpl*(rand.Float64()*2-1)
			phase += step
		}
		phase = math.Mod(phase, 2*math.Pi)
		if err := in.FeedReal(block); err != nil {
			return err
		}
	}
}

func (s *SigGen) Tune(hz float64) (float64, error) {
	s.freq = hz
	return hz, nil
}

func (s *SigGen) Gain(db float64) (float64, error)  { return 0, ErrUnsupported }
func (s *SigGen) Atten(db float64) (float64, error) { return 0, ErrUnsupported }

func floatOr(s string, def float64) float64 {
	if s == "" {
		return def
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return def
	}
	return v
}
