// Package rtpout packetizes a channel's demodulated audio/IQ samples
// into RTP and sends them to the channel's multicast data group,
// optionally Opus-encoded. RTCP and SAP are named external-
// collaborator interfaces per the binding contract: this package
// defines how a sender plugs in, not a full implementation of either
// protocol.
package rtpout

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"

	"github.com/pion/rtp"
	"gopkg.in/hraban/opus.v2"

	"github.com/cwsl/radiod/internal/channel"
	"github.com/cwsl/radiod/internal/mcast"
	"github.com/cwsl/radiod/internal/rerr"
	"github.com/cwsl/radiod/internal/rlog"
)

// PayloadTypePCM and PayloadTypeOpus are the dynamic RTP payload type
// numbers this sender uses (RFC 3551 leaves 96-127 to dynamic
// negotiation; a real deployment would exchange these via SDP/SAP).
const (
	PayloadTypePCM  = 97
	PayloadTypeOpus = 98
)

// Sender packetizes and transmits one channel's audio stream.
type Sender struct {
	ch       *channel.Channel
	mcastTx  *mcast.Sender
	encoding string
	encoder  *opus.Encoder
	sampRate int
}

// NewSender builds a packetizer bound to ch's output group, TTL, and
// encoding ("", "pcm", or "opus").
func NewSender(ch *channel.Channel, sampRate int, iface *net.Interface) (*Sender, error) {
	dataGroup, ttl, encoding := ch.Output()
	addr, err := mcast.Resolve(dataGroup)
	if err != nil {
		return nil, rerr.OutputBind(err)
	}
	tx, err := mcast.NewSender(addr, iface, ttl, mcast.DefaultTOS)
	if err != nil {
		return nil, rerr.OutputBind(err)
	}

	s := &Sender{ch: ch, mcastTx: tx, encoding: encoding, sampRate: sampRate}
	if encoding == "opus" {
		enc, err := opus.NewEncoder(sampRate, 1, opus.Application(2049)) // OPUS_APPLICATION_AUDIO
		if err != nil {
			tx.Close()
			return nil, rerr.OutputBind(fmt.Errorf("opus encoder: %w", err))
		}
		s.encoder = enc
	}
	return s, nil
}

// Send packetizes one block of demodulated audio (signed 16-bit PCM
// for "" or "pcm" encoding, float32 mono for "opus") and transmits it
// as a single RTP packet, advancing the channel's RTP sequencing
// state. A send failure increments no process-wide counter by itself;
// callers should count rerr.Send results against a per-channel error
// counter per the non-propagating SendError policy.
func (s *Sender) Send(samples []float32) error {
	var payload []byte
	var err error
	switch s.encoding {
	case "opus":
		payload, err = s.encodeOpus(samples)
	default:
		payload = encodePCM16(samples)
	}
	if err != nil {
		return rerr.Send(err)
	}

	payloadType := uint8(PayloadTypePCM)
	if s.encoding == "opus" {
		payloadType = PayloadTypeOpus
	}
	rtpState := s.ch.AdvanceRTP(len(payload), len(samples))

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    payloadType,
			SequenceNumber: rtpState.Sequence,
			Timestamp:      rtpState.Timestamp,
			SSRC:           rtpState.SSRC,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		return rerr.Send(fmt.Errorf("rtp marshal: %w", err))
	}
	if err := s.mcastTx.Send(raw); err != nil {
		return rerr.Send(err)
	}
	return nil
}

func (s *Sender) encodeOpus(samples []float32) ([]byte, error) {
	out := make([]byte, 4000)
	n, err := s.encoder.EncodeFloat32(samples, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func encodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		clamped := v
		if clamped > 1 {
			clamped = 1
		} else if clamped < -1 {
			clamped = -1
		}
		binary.BigEndian.PutUint16(out[2*i:], uint16(int16(clamped*math.MaxInt16)))
	}
	return out
}

func (s *Sender) Close() error { return s.mcastTx.Close() }

// RTCPSender is the binding contract for an RTCP sender-report
// goroutine: one sleeps in 1-second intervals and calls SendReport.
// Full RTCP is out of scope; this interface lets the engine wire one
// in without the filter/channel packages depending on its internals.
type RTCPSender interface {
	SendReport(rtpState channel.RTPState) error
}

// SAPSender is the binding contract for a Session Announcement
// Protocol announcer advertising a channel's data group. Full SAP
// packet construction is out of scope.
type SAPSender interface {
	Announce(ch *channel.Channel) error
	Withdraw(ch *channel.Channel) error
}

// LogRTCP is the default RTCPSender: it logs each sender report at
// elevated verbosity instead of constructing and transmitting a real
// RTCP packet. Wired in when [global] rtcp is set, matching the
// original's RTCP_enable-gated per-channel thread without reimplementing
// the RTCP wire protocol.
type LogRTCP struct{}

func (LogRTCP) SendReport(rtpState channel.RTPState) error {
	rlog.V(1).Printf("rtcp: ssrc %d: sender report at seq %d, %d bytes sent",
		rtpState.SSRC, rtpState.Sequence, rtpState.ByteCount)
	return nil
}

// LogSAP is the default SAPSender: it logs announce/withdraw events
// instead of constructing and transmitting real SAP packets. Wired in
// when [global] sap is set, matching the original's SAP_enable-gated
// per-channel thread.
type LogSAP struct{}

func (LogSAP) Announce(ch *channel.Channel) error {
	rlog.V(1).Printf("sap: announcing ssrc %d", ch.SSRC())
	return nil
}

func (LogSAP) Withdraw(ch *channel.Channel) error {
	rlog.V(1).Printf("sap: withdrawing ssrc %d", ch.SSRC())
	return nil
}
