// Package filter implements the shared overlap-save fast-convolution
// filter bank: one forward transform per input block feeding
// independent per-channel filter outputs.
package filter

import "gonum.org/v1/gonum/dsp/fourier"

// transform wraps gonum's arbitrary-length FFT so the rest of the
// package does not care whether the front end is real or complex.
// gonum's FFTReal/FFT types (unlike a typical radix-2-only helper)
// support any N, which overlap-save requires since N = L + M - 1 is
// rarely a power of two.
type transform struct {
	n      int
	isReal bool
	real   *fourier.FFTReal
	cmplx  *fourier.FFT
}

func newTransform(n int, isReal bool) *transform {
	t := &transform{n: n, isReal: isReal}
	if isReal {
		t.real = fourier.NewFFTReal(n)
	} else {
		t.cmplx = fourier.NewFFT(n)
	}
	return t
}

// binCount returns the number of frequency-domain bins this transform
// produces: N/2+1 for real input, N for complex.
func (t *transform) binCount() int {
	if t.isReal {
		return t.n/2 + 1
	}
	return t.n
}

func (t *transform) forwardReal(seq []float64) []complex128 {
	dst := make([]complex128, t.binCount())
	return t.real.Coefficients(dst, seq)
}

func (t *transform) forwardComplex(seq []complex128) []complex128 {
	dst := make([]complex128, t.binCount())
	return t.cmplx.Coefficients(dst, seq)
}

// inverseComplex returns N complex time-domain samples from N bins.
func (t *transform) inverseComplex(bins []complex128) []complex128 {
	dst := make([]complex128, t.n)
	return t.cmplx.Sequence(dst, bins)
}
