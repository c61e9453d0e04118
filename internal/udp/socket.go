package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// BroadcastHost is the destination used when Send is given no host.
const BroadcastHost = "255.255.255.255"

// SocketConfig describes how a Socket is created.
type SocketConfig struct {
	// BindAddress is the numeric local address to bind to ("0.0.0.0" for
	// all interfaces). Empty means the socket is used for transmitting
	// only: it is not bound to a chosen address and the kernel assigns
	// an ephemeral source port.
	BindAddress string

	// Port is the local port to bind when BindAddress is set (0 lets the
	// kernel choose), and the default destination port for sends.
	Port int

	// ReuseAddress sets SO_REUSEADDR before binding.
	ReuseAddress bool

	// Broadcast sets SO_BROADCAST so datagrams may be sent to
	// broadcast addresses.
	Broadcast bool
}

// Socket is a non-blocking UDP socket with a default destination port.
//
// Thread Safety:
//   - Send, SendTo and Close are safe for concurrent use.
//   - Close releases the descriptor exactly once; later calls are no-ops.
type Socket struct {
	conn *net.UDPConn
	raw  syscall.RawConn

	// port is kept in network byte order, as it appears in a sockaddr.
	port  uint16
	bound bool

	closeOnce sync.Once
	closeErr  error
	closes    atomic.Int32
	closed    atomic.Bool
}

// Open creates a UDP socket according to cfg.
//
// Parameters:
//   - ctx: Context for cancellation while the socket is being set up
//   - cfg: Bind address, port and socket options
//
// Returns:
//   - *Socket: Ready socket, owned by the caller until Close
//   - error: *AddressError for an unparsable bind address,
//     *SocketError when a system call fails
func Open(ctx context.Context, cfg SocketConfig) (*Socket, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, &AddressError{Address: strconv.Itoa(cfg.Port), Err: errors.New("port out of range")}
	}

	network := "udp4"
	address := ":0"
	if cfg.BindAddress != "" {
		ip, err := netip.ParseAddr(cfg.BindAddress)
		if err != nil {
			return nil, &AddressError{Address: cfg.BindAddress, Err: err}
		}
		if ip.Is6() && !ip.Is4In6() {
			network = "udp6"
		}
		address = netip.AddrPortFrom(ip, uint16(cfg.Port)).String()
	}

	lc := net.ListenConfig{Control: cfg.control}
	pc, err := lc.ListenPacket(ctx, network, address)
	if err != nil {
		var serr *SocketError
		if errors.As(err, &serr) {
			return nil, serr
		}
		return nil, &SocketError{Op: "bind", Err: err}
	}

	conn := pc.(*net.UDPConn)
	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, &SocketError{Op: "syscallconn", Err: err}
	}

	s := &Socket{
		conn:  conn,
		raw:   raw,
		bound: cfg.BindAddress != "",
	}

	port := cfg.Port
	if s.bound {
		if la, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			port = la.Port
		}
	}
	s.port = HostToNetwork16(uint16(port))

	return s, nil
}

// control applies the requested socket options before bind.
func (cfg SocketConfig) control(_, _ string, rc syscall.RawConn) error {
	var optErr error
	err := rc.Control(func(fd uintptr) {
		if cfg.ReuseAddress {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
				optErr = &SocketError{Op: "setsockopt SO_REUSEADDR", Err: err}
				return
			}
		}
		if cfg.Broadcast {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
				optErr = &SocketError{Op: "setsockopt SO_BROADCAST", Err: err}
			}
		}
	})
	if err != nil {
		return &SocketError{Op: "control", Err: err}
	}
	return optErr
}

// Port returns the socket's port in host byte order: the bound port for a
// bound socket, the configured destination port otherwise.
func (s *Socket) Port() int {
	return int(NetworkToHost16(s.port))
}

// Bound reports whether the socket was bound to a configured address.
func (s *Socket) Bound() bool {
	return s.bound
}

// LocalAddr returns the local endpoint the kernel assigned.
func (s *Socket) LocalAddr() Endpoint {
	ep, _ := ResolveAddr(s.conn.LocalAddr())
	return ep
}

// Send transmits payload to the broadcast address on the socket's port.
func (s *Socket) Send(payload []byte) bool {
	return s.SendTo(payload, "", 0)
}

// SendString transmits text to host:port. See SendTo.
func (s *Socket) SendString(text, host string, port int) bool {
	return s.SendTo([]byte(text), host, port)
}

// SendTo transmits payload as a single datagram.
//
// An empty host means the broadcast address and port 0 means the
// socket's own port. It returns true only if the whole payload was
// handed to the kernel; a parse failure, a write error or a short write
// all yield false. It never panics.
func (s *Socket) SendTo(payload []byte, host string, port int) bool {
	if s == nil || s.closed.Load() {
		return false
	}
	if host == "" {
		host = BroadcastHost
	}
	if port == 0 {
		port = s.Port()
	}
	if port < 1 || port > 65535 {
		return false
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}

	n, err := s.conn.WriteToUDPAddrPort(payload, netip.AddrPortFrom(ip, uint16(port)))
	return err == nil && n == len(payload)
}

// Close shuts the socket down in both directions and releases the
// descriptor. Only the first call has any effect.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closes.Add(1)

		// Shutdown wakes any reader parked on the descriptor. Unconnected
		// datagram sockets report ENOTCONN, which is expected.
		_ = s.raw.Control(func(fd uintptr) {
			_ = unix.Shutdown(int(fd), unix.SHUT_RDWR)
		})

		if err := s.conn.Close(); err != nil {
			s.closeErr = fmt.Errorf("udp: close: %w", err)
		}
	})
	return s.closeErr
}

// IsClosed reports whether Close has been called.
func (s *Socket) IsClosed() bool {
	return s.closed.Load()
}
