// Package notch implements the per-bin adaptive spur suppressors
// applied inside the filter input, plus the implicit DC sentinel
// carried as the final notch entry.
package notch

import (
	"math"
	"math/cmplx"

	"github.com/cwsl/radiod/internal/tuning"
)

// DefaultAlpha is the exponential smoothing coefficient (~0.01, a
// ~10s time constant at 100 blocks/s).
const DefaultAlpha = 0.01

// Entry is one configured spur suppressor. state is a complex EWMA of
// the notched bin's own value, which converges toward a persistent
// spur's value and is then subtracted out — unlike a magnitude-only
// estimate compared against itself, which never attenuates a steady
// tone once it converges.
type Entry struct {
	FreqHz float64
	Bin    int
	Alpha  float64
	state  complex128
	isDC   bool // the implicit sentinel: always fully suppressed
}

// Bank holds the ordered sequence of notch entries for one frontend,
// with the DC sentinel always last.
type Bank struct {
	entries []*Entry
}

// NewBank converts configured spur frequencies into bin indices via
// tuning.Compute and appends the implicit DC (bin 0) sentinel.
func NewBank(n, m int, sampRate float64, isReal bool, spursHz []float64) (*Bank, error) {
	b := &Bank{}
	for _, f := range spursHz {
		res, err := tuning.Compute(n, m, sampRate, f, isReal)
		if err != nil {
			return nil, err
		}
		b.entries = append(b.entries, &Entry{
			FreqHz: f,
			Bin:    res.Shift,
			Alpha:  DefaultAlpha,
		})
	}
	b.entries = append(b.entries, &Entry{FreqHz: 0, Bin: 0, isDC: true})
	return b, nil
}

// Entries exposes the configured notches (including the DC sentinel)
// for status reporting.
func (b *Bank) Entries() []*Entry { return b.entries }

// AttenuationDB reports how much the entry's converged estimate is
// currently subtracting, in dB relative to a full-scale unit bin. A
// fresh entry whose state has not yet converged reports 0.
func (e *Entry) AttenuationDB() float64 {
	mag := cmplx.Abs(e.state)
	if mag <= 0 {
		return 0
	}
	return 20 * math.Log10(mag)
}

// Apply updates each notch's running estimate and attenuates bins
// in-place, once per block. bins is the shared forward-transform
// output; Apply must run before the block is published to channels,
// never concurrently with a channel read.
func (b *Bank) Apply(bins []complex128) {
	for _, e := range b.entries {
		if e.Bin < 0 || e.Bin >= len(bins) {
			continue
		}
		if e.isDC {
			bins[e.Bin] = 0
			continue
		}
		raw := bins[e.Bin]
		e.state = complex(1-e.Alpha, 0)*e.state + complex(e.Alpha, 0)*raw
		bins[e.Bin] = raw - e.state
	}
}
