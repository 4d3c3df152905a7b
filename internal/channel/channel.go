package channel

import (
	"sync"
	"sync/atomic"

	"github.com/cwsl/radiod/internal/tuning"
)

// State is a node in the channel lifecycle state machine:
// Created -> Running -> {Idle -> Terminating -> Destroyed}.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateIdle
	StateTerminating
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateIdle:
		return "idle"
	case StateTerminating:
		return "terminating"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// RTPState tracks the RTP sequencing fields the Channel data model
// requires: ssrc doubles as both RTP synchronization source and
// registry key, sequence/byte-count/timestamp advance per packet.
type RTPState struct {
	SSRC       uint32
	Sequence   uint16
	ByteCount  uint64
	Timestamp  uint32
	PayloadType uint8
}

// Channel is one demodulator channel bound to the shared filter bank.
// A channel is either fully constructed and registered, or it does
// not exist. Construct only via Registry.Create.
type Channel struct {
	ssrc uint32 // immutable for the channel's lifetime

	mu            sync.Mutex
	freq          float64
	shift         int
	remainder     float64
	preset        string
	bandwidthLow  float64
	bandwidthHigh float64

	dataGroup   string
	statusGroup string
	ttl         int
	encoding    string

	rtp RTPState

	lifetimeBlocks int // countdown to idle-destroy when freq==0
	remaining      int
	state          State

	inuse int32 // atomic: >0 while a worker holds a reference

	cancel    func()
	workersWG sync.WaitGroup
}

func newChannel(p Params) *Channel {
	ch := &Channel{
		ssrc:           p.SSRC,
		freq:           p.Freq,
		preset:         p.Preset,
		bandwidthLow:   p.BandwidthLow,
		bandwidthHigh:  p.BandwidthHigh,
		dataGroup:      p.DataGroup,
		statusGroup:    p.StatusGroup,
		ttl:            p.TTL,
		encoding:       p.Encoding,
		lifetimeBlocks: p.LifetimeBlocks,
		state:          StateCreated,
	}
	ch.remaining = ch.lifetimeBlocks
	ch.rtp = RTPState{SSRC: p.SSRC}
	return ch
}

// SSRC returns the channel's immutable identity.
func (c *Channel) SSRC() uint32 { return c.ssrc }

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Freq returns the current target center frequency in Hz.
func (c *Channel) Freq() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freq
}

// Tuning returns the channel's current bin shift and fractional
// remainder.
func (c *Channel) Tuning() (shift int, remainder float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shift, c.remainder
}

// Bandwidth returns the current passband edges relative to Freq.
func (c *Channel) Bandwidth() (low, high float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bandwidthLow, c.bandwidthHigh
}

// Output returns the multicast destination, TTL, and encoding.
func (c *Channel) Output() (dataGroup string, ttl int, encoding string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataGroup, c.ttl, c.encoding
}

// RTP returns a copy of the current RTP sequencing state.
func (c *Channel) RTP() RTPState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtp
}

// AdvanceRTP updates sequence/timestamp/byte-count after emitting a
// packet of payloadBytes bytes covering nSamples time-domain samples.
func (c *Channel) AdvanceRTP(payloadBytes, nSamples int) RTPState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rtp.Sequence++
	c.rtp.ByteCount += uint64(payloadBytes)
	c.rtp.Timestamp += uint32(nSamples)
	return c.rtp
}

// setFreq recomputes shift/remainder and resets the idle countdown.
// n, m, sampRate, isReal come from the shared frontend geometry.
func (c *Channel) setFreq(n, m int, sampRate float64, isReal bool, hz float64) error {
	res, err := tuning.Compute(n, m, sampRate, hz, isReal)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freq = hz
	c.shift = res.Shift
	c.remainder = res.Remainder
	c.remaining = c.lifetimeBlocks
	if c.state == StateIdle {
		c.state = StateRunning
	}
	return nil
}

// touch resets the idle countdown without changing frequency: any
// command arriving for this channel keeps it alive.
func (c *Channel) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = c.lifetimeBlocks
	if c.state == StateIdle {
		c.state = StateRunning
	}
}

// tickIdle advances the idle countdown by one block if freq==0,
// returning true once it has reached zero and the channel should be
// reaped.
func (c *Channel) tickIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freq != 0 {
		c.remaining = c.lifetimeBlocks
		return false
	}
	if c.state == StateTerminating || c.state == StateDestroyed {
		return false
	}
	c.state = StateIdle
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining <= 0
}

// acquire/release implement the reference/usage flag gating
// destruction: the status thread and reaper both read a channel
// concurrently; destroy must wait until no reader holds a reference.
func (c *Channel) acquire() { atomic.AddInt32(&c.inuse, 1) }
func (c *Channel) release() { atomic.AddInt32(&c.inuse, -1) }
func (c *Channel) refCount() int32 { return atomic.LoadInt32(&c.inuse) }
