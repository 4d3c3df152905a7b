package filter

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwsl/radiod/internal/notch"
)

// Snapshot is the immutable frequency-domain block published once per
// cycle, shared by reference with every subscribed channel for the
// duration of one cycle. Channels must never mutate Bins.
type Snapshot struct {
	Seq      uint64
	Bins     []complex128
	Isreal   bool
	N, M, L  int
	SampRate float64
}

// Input is the shared forward path from the front end's raw samples
// into the frequency domain. One Input per process (per Frontend),
// feeding every channel's filter output.
type Input struct {
	mu   sync.Mutex
	cond *sync.Cond

	l, m, n  int
	isReal   bool
	sampRate float64

	realAccum    []float64    // real samples accumulated since last block
	complexAccum []complex128 // complex samples accumulated since last block
	realTail     []float64    // last M-1 real samples carried forward
	complexTail  []complex128 // last M-1 complex samples carried forward

	xform *transform
	bank  *notch.Bank

	seq     uint64
	current *Snapshot
	closed  bool
}

// NewInput allocates buffers and plans the transform. Returns an
// error when L or M is zero; spursHz is the configured spur list, DC
// sentinel appended automatically by notch.NewBank.
func NewInput(l, m int, sampRate float64, isReal bool, spursHz []float64) (*Input, error) {
	if l <= 0 || m <= 0 {
		return nil, fmt.Errorf("filter: L and M must both be positive, got L=%d M=%d", l, m)
	}
	if m-1 > l {
		return nil, fmt.Errorf("filter: overlap M-1=%d exceeds block length L=%d", m-1, l)
	}
	n := l + m - 1
	bank, err := notch.NewBank(n, m, sampRate, isReal, spursHz)
	if err != nil {
		return nil, fmt.Errorf("filter: building notch bank: %w", err)
	}

	in := &Input{
		l: l, m: m, n: n,
		isReal:   isReal,
		sampRate: sampRate,
		xform:    newTransform(n, isReal),
		bank:     bank,
	}
	in.cond = sync.NewCond(&in.mu)
	if isReal {
		in.realTail = make([]float64, m-1)
	} else {
		in.complexTail = make([]complex128, m-1)
	}
	return in, nil
}

// L, M, N, SampRate, IsReal expose the geometry for callers (channel
// output, status reporting) that need it without re-deriving it.
func (in *Input) L() int             { return in.l }
func (in *Input) M() int             { return in.m }
func (in *Input) N() int             { return in.n }
func (in *Input) SampRate() float64  { return in.sampRate }
func (in *Input) IsReal() bool       { return in.isReal }
func (in *Input) NotchBank() *notch.Bank { return in.bank }

// FeedReal appends real samples from the front-end driver. Safe to
// call only from the single producer goroutine.
func (in *Input) FeedReal(samples []float64) error {
	if !in.isReal {
		return fmt.Errorf("filter: FeedReal called on a complex-input filter")
	}
	in.mu.Lock()
	in.realAccum = append(in.realAccum, samples...)
	ready := len(in.realAccum) >= in.l
	in.mu.Unlock()
	if ready {
		in.cond.Broadcast()
	}
	return nil
}

// FeedComplex appends complex samples from the front-end driver.
func (in *Input) FeedComplex(samples []complex128) error {
	if in.isReal {
		return fmt.Errorf("filter: FeedComplex called on a real-input filter")
	}
	in.mu.Lock()
	in.complexAccum = append(in.complexAccum, samples...)
	ready := len(in.complexAccum) >= in.l
	in.mu.Unlock()
	if ready {
		in.cond.Broadcast()
	}
	return nil
}

// Close unblocks every waiter (ExecuteBlock and channel Readers) so
// a stalled driver can be cancelled without any caller needing a
// timeout.
func (in *Input) Close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
	in.cond.Broadcast()
}

// ExecuteBlock blocks until L new samples are available, assembles
// the N-sample overlap-save window, runs the forward
// transform once, applies spur/DC suppression, bumps the sequence
// number, and broadcasts readiness to all subscribers. Returns the
// new sequence number.
func (in *Input) ExecuteBlock(ctx context.Context) (uint64, error) {
	stop := in.watchCtx(ctx)
	defer stop()

	in.mu.Lock()
	for {
		if in.closed {
			in.mu.Unlock()
			return 0, context.Canceled
		}
		if err := ctx.Err(); err != nil {
			in.mu.Unlock()
			return 0, err
		}
		n := len(in.realAccum)
		if !in.isReal {
			n = len(in.complexAccum)
		}
		if n >= in.l {
			break
		}
		in.cond.Wait()
	}

	var bins []complex128
	if in.isReal {
		block := make([]float64, 0, in.n)
		block = append(block, in.realTail...)
		block = append(block, in.realAccum[:in.l]...)
		in.realTail = append(in.realTail[:0], in.realAccum[in.l-(in.m-1):in.l]...)
		in.realAccum = append(in.realAccum[:0], in.realAccum[in.l:]...)
		bins = in.xform.forwardReal(block)
	} else {
		block := make([]complex128, 0, in.n)
		block = append(block, in.complexTail...)
		block = append(block, in.complexAccum[:in.l]...)
		in.complexTail = append(in.complexTail[:0], in.complexAccum[in.l-(in.m-1):in.l]...)
		in.complexAccum = append(in.complexAccum[:0], in.complexAccum[in.l:]...)
		bins = in.xform.forwardComplex(block)
	}

	in.bank.Apply(bins)

	in.seq++
	in.current = &Snapshot{
		Seq: in.seq, Bins: bins, Isreal: in.isReal,
		N: in.n, M: in.m, L: in.l, SampRate: in.sampRate,
	}
	seq := in.seq
	in.mu.Unlock()
	in.cond.Broadcast()
	return seq, nil
}

func (in *Input) watchCtx(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			in.cond.Broadcast()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Reader is a per-channel subscription to the shared Input, tracking
// the last sequence number it observed and blocking until a strictly
// greater one is published.
type Reader struct {
	in       *Input
	lastSeen uint64
}

// Subscribe returns a new Reader starting from the current sequence
// number, so the first Next call waits for the next fresh block
// rather than replaying whatever is currently published.
func (in *Input) Subscribe() *Reader {
	in.mu.Lock()
	defer in.mu.Unlock()
	return &Reader{in: in, lastSeen: in.seq}
}

// Next blocks until a new snapshot is published, returning it along
// with whether one or more blocks were skipped (a gap) since the
// reader's last observed sequence number.
func (r *Reader) Next(ctx context.Context) (snap *Snapshot, gap bool, err error) {
	in := r.in
	stop := in.watchCtx(ctx)
	defer stop()

	in.mu.Lock()
	defer in.mu.Unlock()
	for {
		if in.closed {
			return nil, false, context.Canceled
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, false, cerr
		}
		if in.seq > r.lastSeen {
			break
		}
		in.cond.Wait()
	}
	snap = in.current
	gap = snap.Seq > r.lastSeen+1
	r.lastSeen = snap.Seq
	return snap, gap, nil
}
