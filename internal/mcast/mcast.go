// Package mcast provides the multicast socket plumbing shared by the
// data, status, RTCP, and SAP senders/listeners: group address
// resolution (with FNV-1 hash synthesis when DNS/mDNS can't resolve a
// name), TTL/TOS configuration, and SO_REUSEPORT listener setup.
package mcast

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// DefaultTOS is IP TOS 48 (AF12 << 2), the default for radiod traffic.
const DefaultTOS = 48

// fnv1Hash is the 32-bit FNV-1 hash (not FNV-1a): multiply-then-xor.
func fnv1Hash(data []byte) uint32 {
	hash := uint32(0x811c9dc5)
	for _, b := range data {
		hash *= 0x01000193
		hash ^= uint32(b)
	}
	return hash
}

// Synthesize derives a multicast group address in 239.0.0.0/8 from a
// name by hashing it, avoiding the 239.0.0.0/24 and 239.128.0.0/24
// ranges that alias onto the same Ethernet multicast MAC address.
func Synthesize(name string) net.IP {
	hash := fnv1Hash([]byte(name))
	addr := (uint32(239) << 24) | (hash & 0xffffff)
	if addr&0x007fff00 == 0 {
		addr |= (addr & 0xff) << 8
	}
	if addr&0x007fff00 == 0 {
		addr |= 0x00100000
	}
	return net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

// Resolve turns a "name:port" or "name" group spec into a UDP
// address, falling back to Synthesize when DNS/mDNS resolution fails.
func Resolve(spec string) (*net.UDPAddr, error) {
	if addr, err := net.ResolveUDPAddr("udp", spec); err == nil {
		return addr, nil
	}
	parts := strings.SplitN(spec, ":", 2)
	name := parts[0]
	port := 0
	if len(parts) == 2 {
		p, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("mcast: invalid port in %q: %w", spec, err)
		}
		port = p
	}
	return &net.UDPAddr{IP: Synthesize(name), Port: port}, nil
}

// Sender is a socket used to transmit to one multicast group, with
// the outbound TTL and TOS the section configured.
type Sender struct {
	Conn *net.UDPConn
	Addr *net.UDPAddr
}

// NewSender creates an outbound multicast socket bound to iface (nil
// for the default route), joins the group so switches with IGMP
// snooping still deliver locally, and sets TTL/TOS.
func NewSender(addr *net.UDPAddr, iface *net.Interface, ttl, tos int) (*Sender, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("mcast: listen: %w", err)
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcast: raw conn: %w", err)
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, 1); err != nil {
			sockErr = fmt.Errorf("IP_MULTICAST_LOOP: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, ttl); err != nil {
			sockErr = fmt.Errorf("IP_MULTICAST_TTL: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, tos); err != nil {
			sockErr = fmt.Errorf("IP_TOS: %w", err)
			return
		}
		if iface != nil {
			mreqn := unix.IPMreqn{Ifindex: int32(iface.Index)}
			if err := unix.SetsockoptIPMreqn(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_IF, &mreqn); err != nil {
				sockErr = fmt.Errorf("IP_MULTICAST_IF: %w", err)
				return
			}
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcast: control: %w", err)
	}
	if sockErr != nil {
		conn.Close()
		return nil, sockErr
	}

	p := ipv4.NewPacketConn(conn)
	if iface != nil {
		if err := p.JoinGroup(iface, addr); err != nil {
			conn.Close()
			return nil, fmt.Errorf("mcast: join group on %s: %w", iface.Name, err)
		}
	}
	return &Sender{Conn: conn, Addr: addr}, nil
}

func (s *Sender) Send(payload []byte) error {
	n, err := s.Conn.WriteTo(payload, s.Addr)
	if err != nil {
		return err
	}
	if n != len(payload) {
		return fmt.Errorf("mcast: short write: sent %d of %d bytes", n, len(payload))
	}
	return nil
}

func (s *Sender) Close() error { return s.Conn.Close() }

// Listener is an inbound multicast socket bound with SO_REUSEPORT so
// multiple processes (or multiple listeners within one process) can
// share the same group/port.
type Listener struct {
	Conn *net.UDPConn
}

func NewListener(ctx context.Context, addr *net.UDPAddr, iface *net.Interface) (*Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					opErr = err
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
					opErr = err
					return
				}
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}
	pc, err := lc.ListenPacket(ctx, "udp4", addr.String())
	if err != nil {
		return nil, fmt.Errorf("mcast: listen %s: %w", addr, err)
	}
	conn := pc.(*net.UDPConn)
	p := ipv4.NewPacketConn(conn)
	if iface != nil {
		if err := p.JoinGroup(iface, addr); err != nil {
			conn.Close()
			return nil, fmt.Errorf("mcast: join group on %s: %w", iface.Name, err)
		}
	}
	return &Listener{Conn: conn}, nil
}

func (l *Listener) Close() error { return l.Conn.Close() }

// DefaultInterface returns the first up, multicast-capable,
// non-loopback interface, used when a section doesn't name one.
func DefaultInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		return &iface, nil
	}
	return nil, fmt.Errorf("mcast: no suitable multicast interface found")
}
