// Package status implements the multicast control loop: a single
// listener that decodes TLV CMD packets targeting an SSRC, applies
// them against the channel registry, and emits a TLV STATUS packet
// per channel after every action and at least once per Update blocks.
package status

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/cwsl/radiod/internal/channel"
	"github.com/cwsl/radiod/internal/mcast"
	"github.com/cwsl/radiod/internal/rlog"
	"github.com/cwsl/radiod/internal/tlv"
)

// Tag numbers for the control/status wire format.
const (
	TagEOL            = 0
	TagCommandTag      = 1
	TagOutputSSRC      = 18
	TagRadioFrequency  = 33
	TagLowEdge         = 39
	TagHighEdge        = 40
	TagPreset          = 85
	TagDestroy         = 90
	TagStatusInterval  = 106
)

// Command is a decoded CMD packet. Zero-value Hz/string fields mean
// "leave unchanged" (field-present is tracked by the Has* flags).
type Command struct {
	CommandTag uint32
	SSRC       uint32

	HasFreq bool
	Freq    float64

	HasPreset bool
	Preset    string

	HasLowEdge  bool
	LowEdge     float64
	HasHighEdge bool
	HighEdge    float64

	Destroy bool
}

// DecodeCommand parses a CMD packet's payload (after the leading
// packet-type byte).
func DecodeCommand(payload []byte) Command {
	var cmd Command
	for _, f := range tlv.Decode(payload) {
		switch f.Tag {
		case TagCommandTag:
			cmd.CommandTag = uint32(tlv.DecodeInt(f.Value))
		case TagOutputSSRC:
			cmd.SSRC = uint32(tlv.DecodeInt(f.Value))
		case TagRadioFrequency:
			cmd.HasFreq = true
			cmd.Freq = tlv.DecodeDouble(f.Value)
		case TagPreset:
			cmd.HasPreset = true
			cmd.Preset = string(f.Value)
		case TagLowEdge:
			cmd.HasLowEdge = true
			cmd.LowEdge = tlv.DecodeDouble(f.Value)
		case TagHighEdge:
			cmd.HasHighEdge = true
			cmd.HighEdge = tlv.DecodeDouble(f.Value)
		case TagDestroy:
			cmd.Destroy = len(f.Value) > 0 && f.Value[0] != 0
		}
	}
	return cmd
}

// EncodeStatus builds a STATUS packet describing one channel.
func EncodeStatus(ch *channel.Channel) []byte {
	e := tlv.NewEncoder(tlv.PacketStatus)
	e.Int(TagOutputSSRC, uint64(ch.SSRC()))
	e.Double(TagRadioFrequency, ch.Freq())
	low, high := ch.Bandwidth()
	e.Double(TagLowEdge, low)
	e.Double(TagHighEdge, high)
	return e.Bytes()
}

// Loop owns the control socket and applies decoded commands against
// a registry. It is purely cooperative: it never blocks the filter
// pipeline, and every suspension point is the socket read itself.
type Loop struct {
	instanceID uuid.UUID
	registry   *channel.Registry
	listener   *mcast.Listener
	sender     *mcast.Sender

	onCreate func(cmd Command) (*channel.Channel, error)

	mirror func(ssrc uint32, payload []byte)
}

// SetMirror installs a sink that receives a copy of every STATUS
// packet this loop emits, keyed by the channel's SSRC. Used to mirror
// the control-plane status stream onto a secondary sink (e.g. MQTT)
// without that sink needing its own multicast listener.
func (l *Loop) SetMirror(fn func(ssrc uint32, payload []byte)) { l.mirror = fn }

// NewLoop binds the control socket and returns a Loop ready to Run.
// onCreate is called for a CMD that targets an unknown SSRC; it is
// the engine's hook to build the filter-output/demod worker pair
// before the channel is registered as Running.
func NewLoop(ctx context.Context, statusGroup string, iface *net.Interface, registry *channel.Registry, ttl, tos int, onCreate func(Command) (*channel.Channel, error)) (*Loop, error) {
	addr, err := mcast.Resolve(statusGroup)
	if err != nil {
		return nil, err
	}
	listener, err := mcast.NewListener(ctx, addr, iface)
	if err != nil {
		return nil, err
	}
	sender, err := mcast.NewSender(addr, iface, ttl, tos)
	if err != nil {
		listener.Close()
		return nil, err
	}
	return &Loop{
		instanceID: uuid.New(),
		registry:   registry,
		listener:   listener,
		sender:     sender,
		onCreate:   onCreate,
	}, nil
}

// InstanceID returns the random UUID drawn when this Loop was created;
// every start of the process draws a new one.
func (l *Loop) InstanceID() uuid.UUID { return l.instanceID }

func (l *Loop) Close() {
	l.listener.Close()
	l.sender.Close()
}

// Run reads CMD packets until ctx is cancelled, applying each one and
// emitting a STATUS reply. Malformed packets are dropped silently, as
// a control socket is inherently best-effort.
func (l *Loop) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.listener.Conn.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, 9000)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, _, err := l.listener.Conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if n < 2 || buf[0] != byte(tlv.PacketCmd) {
			continue
		}
		cmd := DecodeCommand(buf[1:n])
		ch := l.apply(cmd)
		if ch != nil {
			payload := EncodeStatus(ch)
			if err := l.sender.Send(payload); err != nil {
				rlog.Printf("status: send failed: %v", err)
			}
			if l.mirror != nil {
				l.mirror(ch.SSRC(), payload)
			}
		}
	}
}

func (l *Loop) apply(cmd Command) *channel.Channel {
	ch, ok := l.registry.Lookup(cmd.SSRC)
	if !ok {
		if l.onCreate == nil {
			return nil
		}
		created, err := l.onCreate(cmd)
		if err != nil {
			rlog.Printf("status: create SSRC %d: %v", cmd.SSRC, err)
			return nil
		}
		return created
	}

	l.registry.Touch(ch)
	if cmd.Destroy {
		l.registry.Destroy(ch)
		return ch
	}
	if cmd.HasFreq {
		if err := l.registry.SetFreq(ch, cmd.Freq); err != nil {
			rlog.Printf("status: set_freq SSRC %d: %v", cmd.SSRC, err)
		}
	}
	return ch
}

// BroadcastAll emits a STATUS packet for every registered channel;
// called by the engine at least once per Update blocks.
func (l *Loop) BroadcastAll() {
	for _, ch := range l.registry.All() {
		payload := EncodeStatus(ch)
		if err := l.sender.Send(payload); err != nil {
			rlog.Printf("status: broadcast send failed: %v", err)
		}
		if l.mirror != nil {
			l.mirror(ch.SSRC(), payload)
		}
	}
}
