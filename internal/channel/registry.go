package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/cwsl/radiod/internal/rerr"
	"github.com/cwsl/radiod/internal/tuning"
)

// MaxProbes is the number of successive SSRCs the caller's collision
// policy probes before giving up.
const MaxProbes = 100

// FrontendGeometry is the subset of the shared frontend state the
// registry needs to recompute tuning on SetFreq, without importing
// the filter package (keeps channel decoupled from filter/FFT
// internals; engine wires the concrete values through).
type FrontendGeometry struct {
	N, M     int
	SampRate float64
	IsReal   bool
}

// Registry is the process-wide SSRC->channel map, guarded by a single
// mutex.
type Registry struct {
	mu       sync.Mutex
	channels map[uint32]*Channel
	geom     FrontendGeometry
}

func NewRegistry(geom FrontendGeometry) *Registry {
	return &Registry{channels: make(map[uint32]*Channel), geom: geom}
}

// Create inserts a new channel with the given SSRC if free, else
// returns nil. Use ProbeCreate for the caller-side collision policy.
func (r *Registry) Create(p Params) (*Channel, error) {
	if p.SSRC == 0 {
		return nil, rerr.Config(fmt.Errorf("ssrc 0 is reserved"))
	}
	res, err := computeTuningFor(r.geom, p.Freq)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[p.SSRC]; exists {
		return nil, nil
	}
	ch := newChannel(p)
	ch.shift, ch.remainder = res.shift, res.remainder
	r.channels[p.SSRC] = ch
	return ch, nil
}

// ProbeCreate implements the caller-side collision policy: probe up
// to MaxProbes successive SSRCs starting at want before giving up.
func (r *Registry) ProbeCreate(want uint32, p Params) (*Channel, error) {
	for i := 0; i < MaxProbes; i++ {
		candidate := want + uint32(i)
		if candidate == 0 {
			continue // 0 is reserved
		}
		p.SSRC = candidate
		ch, err := r.Create(p)
		if err != nil {
			return nil, err
		}
		if ch != nil {
			return ch, nil
		}
	}
	return nil, rerr.SSRCExhausted(want, MaxProbes)
}

// Lookup returns the channel registered under ssrc, if any.
func (r *Registry) Lookup(ssrc uint32) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[ssrc]
	return ch, ok
}

// All returns a snapshot slice of every registered channel, safe to
// range over without holding the registry lock.
func (r *Registry) All() []*Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// SetFreq recomputes shift/remainder and resets the idle countdown;
// safe to call from the status thread while the channel is active.
func (r *Registry) SetFreq(ch *Channel, hz float64) error {
	return ch.setFreq(r.geom.N, r.geom.M, r.geom.SampRate, r.geom.IsReal, hz)
}

// Touch resets a channel's idle countdown without changing frequency.
func (r *Registry) Touch(ch *Channel) { ch.touch() }

// StartDemod transitions Created->Running.
func (r *Registry) StartDemod(ch *Channel) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.state == StateCreated {
		ch.state = StateRunning
	}
}

// Destroy transitions the channel to Terminating, waits for any
// in-flight reader to release it, joins its workers, then removes it
// from the registry. cancel, previously installed by the caller via
// SetWorkerCancel, is invoked to unblock workers.
func (r *Registry) Destroy(ch *Channel) {
	ch.mu.Lock()
	if ch.state == StateTerminating || ch.state == StateDestroyed {
		ch.mu.Unlock()
		return
	}
	ch.state = StateTerminating
	cancel := ch.cancel
	ch.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for ch.refCount() > 0 {
		time.Sleep(time.Millisecond)
	}
	ch.workersWG.Wait()

	ch.mu.Lock()
	ch.state = StateDestroyed
	ch.mu.Unlock()

	r.mu.Lock()
	delete(r.channels, ch.SSRC())
	r.mu.Unlock()
}

// SetWorkerCancel installs the cancel function Destroy calls to
// unblock this channel's workers, and returns a WaitGroup the caller
// should Add/Done around each worker goroutine so Destroy can join
// them.
func (ch *Channel) SetWorkerCancel(cancel func()) *sync.WaitGroup {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.cancel = cancel
	return &ch.workersWG
}

// Acquire/Release expose the reference-count gate to readers like the
// status thread: destruction is gated by a reference/usage flag.
func (ch *Channel) Acquire() { ch.acquire() }
func (ch *Channel) Release() { ch.release() }

// ReapIdle advances every non-zero-freq-exempt channel's idle
// countdown by one block and destroys any that reach zero
// (Running->Idle->Terminating). Call once per block from the
// lifecycle thread.
func (r *Registry) ReapIdle() {
	for _, ch := range r.All() {
		if ch.tickIdle() {
			r.Destroy(ch)
		}
	}
}

type tuneResult struct {
	shift     int
	remainder float64
}

func computeTuningFor(geom FrontendGeometry, freq float64) (tuneResult, error) {
	if freq == 0 {
		return tuneResult{}, nil // a freq=0 channel is parked, not tuned
	}
	res, err := tuning.Compute(geom.N, geom.M, geom.SampRate, freq, geom.IsReal)
	if err != nil {
		return tuneResult{}, err
	}
	return tuneResult{shift: res.Shift, remainder: res.Remainder}, nil
}
