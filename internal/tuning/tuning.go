// Package tuning computes the integer bin shift and fractional-bin
// remainder that places a requested channel center frequency at bin 0
// of the shared FFT.
package tuning

import (
	"fmt"
	"math"
)

// ErrOutOfRange reports a frequency outside the representable range
// for the front end's sample rate and real/complex nature.
type ErrOutOfRange struct {
	Freq, SampRate float64
	IsReal         bool
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("frequency %.3f Hz out of range for samprate %.3f Hz (isreal=%v)",
		e.Freq, e.SampRate, e.IsReal)
}

// Result is the outcome of Compute: an integer bin shift and a
// sub-bin remainder in Hz, with |Remainder| <= BinWidth/2.
type Result struct {
	Shift     int
	Remainder float64
	BinWidth  float64
}

// Compute mirrors compute_tuning(N, M, samprate, freq): it takes the
// filter kernel length M for interface fidelity but the bin-width and
// shift computation depends only on N and samprate.
func Compute(n, m int, sampRate float64, freq float64, isReal bool) (Result, error) {
	_ = m
	if n <= 0 || sampRate <= 0 {
		return Result{}, fmt.Errorf("tuning: invalid N=%d samprate=%g", n, sampRate)
	}

	if isReal {
		if freq < 0 || freq > sampRate/2 {
			return Result{}, &ErrOutOfRange{Freq: freq, SampRate: sampRate, IsReal: isReal}
		}
	} else {
		if math.Abs(freq) > sampRate/2 {
			return Result{}, &ErrOutOfRange{Freq: freq, SampRate: sampRate, IsReal: isReal}
		}
	}

	binWidth := sampRate / float64(n)
	shift := roundHalfToEven(freq / binWidth)

	if isReal {
		if shift < 0 {
			shift = 0
		}
		if max := n / 2; shift > max {
			shift = max
		}
	} else {
		shift = ((shift % n) + n) % n
		if shift > n/2 {
			shift -= n
		}
	}

	remainder := freq - float64(shift)*binWidth
	if remainder > binWidth/2 {
		remainder -= binWidth
		shift++
	} else if remainder < -binWidth/2 {
		remainder += binWidth
		shift--
	}

	return Result{Shift: shift, Remainder: remainder, BinWidth: binWidth}, nil
}

// roundHalfToEven implements banker's rounding, the tie-break rule
// for frequencies that land exactly on a bin edge.
func roundHalfToEven(x float64) int {
	floor := math.Floor(x)
	diff := x - floor
	switch {
	case diff < 0.5:
		return int(floor)
	case diff > 0.5:
		return int(floor) + 1
	default:
		if int64(floor)%2 == 0 {
			return int(floor)
		}
		return int(floor) + 1
	}
}
