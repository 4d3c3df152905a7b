package filter

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwsl/radiod/internal/tuning"
)

// KaiserBeta is the default Kaiser window shape parameter for
// per-channel bandpass kernel design.
const KaiserBeta = 6.0

// Output is one channel's filter-output stage: it subscribes to a
// shared Input, and for every new block frequency-
// shifts, band-limits, inverse-transforms, discards the overlap, and
// applies the fractional-bin fine rotator before handing L
// time-domain samples to the demodulator.
type Output struct {
	reader *Reader

	n, m, l  int
	sampRate float64

	shift     int
	remainder float64
	binWidth  float64

	kernelFreq []complex128 // length-N frequency response of the bandpass kernel
	xform      *transform   // always complex: downconverted baseband is complex even off a real front end

	rotatorPhase float64 // radians, carried across blocks for phase continuity
	rotatorStep  float64 // radians/sample = remainder/sampRate * 2*pi

	clampWarned bool
}

// NewOutput builds a channel filter-output stage tuned to freq with
// passband [lowHz, highHz] relative to freq (lowHz may be negative).
// lowHz/highHz are clamped to the analysis window [-N/2,N/2] bins
// worth of bandwidth if they exceed it, returning clamped=true once.
func NewOutput(reader *Reader, freq, lowHz, highHz float64) (*Output, error) {
	in := reader.in
	n, m, l := in.N(), in.M(), in.L()

	res, err := tuning.Compute(n, m, in.SampRate(), freq, in.IsReal())
	if err != nil {
		return nil, err
	}

	o := &Output{
		reader:   reader,
		n:        n, m: m, l: l,
		sampRate: in.SampRate(),
		shift:    res.Shift,
		remainder: res.Remainder,
		binWidth: res.BinWidth,
		xform:    newTransform(n, false),
	}
	o.rotatorStep = 2 * math.Pi * o.remainder / o.sampRate

	maxSpan := o.sampRate
	if highHz-lowHz > maxSpan {
		mid := (highHz + lowHz) / 2
		lowHz = mid - maxSpan/2
		highHz = mid + maxSpan/2
		o.clampWarned = true
	}
	o.kernelFreq = o.buildKernel(lowHz, highHz)
	return o, nil
}

// ClampedWarning reports whether this channel's requested bandwidth
// needed clamping to the analysis window; reported once per channel.
func (o *Output) ClampedWarning() bool { return o.clampWarned }

// buildKernel designs a windowed-sinc bandpass FIR of length M
// covering [lowHz,highHz] relative to baseband, then zero-pads to N
// and transforms it once into the frequency domain.
func (o *Output) buildKernel(lowHz, highHz float64) []complex128 {
	taps := make([]complex128, o.m)
	win := kaiserWindow(o.m, KaiserBeta)
	center := float64(o.m-1) / 2
	fs := o.sampRate
	for i := 0; i < o.m; i++ {
		t := float64(i) - center
		var h complex128
		if t == 0 {
			h = complex((highHz-lowHz)/fs, 0)
		} else {
			h = (cmplx.Exp(complex(0, 2*math.Pi*highHz*t/fs)) - cmplx.Exp(complex(0, 2*math.Pi*lowHz*t/fs))) / complex(0, 2*math.Pi*t)
		}
		taps[i] = h * complex(win[i], 0)
	}

	padded := make([]complex128, o.n)
	copy(padded, taps)
	return o.xform.forwardComplex(padded)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// fullSpectrum expands a real-input one-sided spectrum (N/2+1 bins,
// conjugate-symmetric) into a full N-bin complex spectrum, or returns
// a copy of an already-complex N-bin spectrum unchanged.
func fullSpectrum(snap *Snapshot) []complex128 {
	full := make([]complex128, snap.N)
	if !snap.Isreal {
		copy(full, snap.Bins)
		return full
	}
	copy(full, snap.Bins[:snap.N/2+1])
	for k := 1; k < snap.N-snap.N/2; k++ {
		full[snap.N-k] = complexConj(snap.Bins[k])
	}
	return full
}

func complexConj(c complex128) complex128 { return complex(real(c), -imag(c)) }

// Next waits for the next shared block and produces exactly L
// time-domain samples, discarding the M-1 overlap samples. gap
// reports whether one or more blocks were skipped since the last
// call.
func (o *Output) Next(ctx context.Context) ([]complex128, bool, error) {
	snap, gap, err := o.reader.Next(ctx)
	if err != nil {
		return nil, false, err
	}
	if snap.N != o.n {
		return nil, false, fmt.Errorf("filter output: snapshot N=%d does not match channel N=%d", snap.N, o.n)
	}

	full := fullSpectrum(snap)

	shifted := make([]complex128, o.n)
	for k := 0; k < o.n; k++ {
		src := ((k+o.shift)%o.n + o.n) % o.n
		shifted[k] = full[src] * o.kernelFreq[k]
	}

	timeDomain := o.xform.inverseComplex(shifted)

	out := make([]complex128, o.l)
	copy(out, timeDomain[o.m-1:])
	scale := complex(1/float64(o.n), 0)
	for i := range out {
		out[i] *= scale
	}

	o.applyRotator(out)
	return out, gap, nil
}

// applyRotator steps a complex rotator by 2π·remainder/sampRate radians
// per sample, carrying phase continuously across blocks so
// consecutive blocks don't produce a phase discontinuity.
func (o *Output) applyRotator(samples []complex128) {
	if o.rotatorStep == 0 {
		return
	}
	phase := o.rotatorPhase
	for i, s := range samples {
		rot := complex(math.Cos(phase), -math.Sin(phase))
		samples[i] = s * rot
		phase += o.rotatorStep
	}
	o.rotatorPhase = math.Mod(phase, 2*math.Pi)
}
