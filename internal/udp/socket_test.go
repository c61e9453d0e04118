package udp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// openLoopback opens a socket bound to a free port on 127.0.0.1.
func openLoopback(t *testing.T) *Socket {
	t.Helper()
	s, err := Open(context.Background(), SocketConfig{BindAddress: "127.0.0.1", ReuseAddress: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// listenPeer opens a plain UDP listener used to observe what a Socket sends.
func listenPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPeer(t *testing.T, conn *net.UDPConn) string {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	buf := make([]byte, 512)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error = %v", err)
	}
	return string(buf[:n])
}

func TestOpen_BoundPortZeroPicksFreePort(t *testing.T) {
	s := openLoopback(t)

	if !s.Bound() {
		t.Error("Bound() = false, want true")
	}
	if s.Port() == 0 {
		t.Fatal("Port() = 0, want the kernel-assigned port")
	}
	if want := HostToNetwork16(uint16(s.Port())); s.port != want {
		t.Errorf("stored port = %#x, want %#x in network order", s.port, want)
	}
	if got, want := s.LocalAddr(), (Endpoint{Host: "127.0.0.1", Port: s.Port()}); got != want {
		t.Errorf("LocalAddr() = %+v, want %+v", got, want)
	}
}

func TestOpen_UnboundKeepsConfiguredPort(t *testing.T) {
	s, err := Open(context.Background(), SocketConfig{Port: 14442, Broadcast: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if s.Bound() {
		t.Error("Bound() = true, want false")
	}
	if s.Port() != 14442 {
		t.Errorf("Port() = %d, want 14442", s.Port())
	}
}

func TestOpen_InvalidAddress(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SocketConfig
		address string
	}{
		{"hostname-like", SocketConfig{BindAddress: "not-an-ip"}, "not-an-ip"},
		{"octet out of range", SocketConfig{BindAddress: "300.1.1.1"}, "300.1.1.1"},
		{"name not resolved", SocketConfig{BindAddress: "localhost"}, "localhost"},
		{"port out of range", SocketConfig{BindAddress: "127.0.0.1", Port: 70000}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			if !errors.Is(err, ErrInvalidAddress) {
				t.Fatalf("Open() error = %v, want ErrInvalidAddress", err)
			}
			if tt.address == "" {
				return
			}
			var aerr *AddressError
			if !errors.As(err, &aerr) {
				t.Fatalf("Open() error = %T, want *AddressError", err)
			}
			if aerr.Address != tt.address {
				t.Errorf("AddressError.Address = %q, want %q", aerr.Address, tt.address)
			}
		})
	}
}

func TestOpen_PortInUseReportsErrno(t *testing.T) {
	first, err := Open(context.Background(), SocketConfig{BindAddress: "127.0.0.1"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer first.Close()

	_, err = Open(context.Background(), SocketConfig{BindAddress: "127.0.0.1", Port: first.Port()})
	if !errors.Is(err, ErrSocket) {
		t.Fatalf("Open() error = %v, want ErrSocket", err)
	}
	var serr *SocketError
	if !errors.As(err, &serr) {
		t.Fatalf("Open() error = %T, want *SocketError", err)
	}
	if serr.Errno() != unix.EADDRINUSE {
		t.Errorf("Errno() = %v, want EADDRINUSE", serr.Errno())
	}
}

func TestSendTo_DeliversToHostAndPort(t *testing.T) {
	peer := listenPeer(t)
	port := peer.LocalAddr().(*net.UDPAddr).Port

	s, err := Open(context.Background(), SocketConfig{Broadcast: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if !s.SendTo([]byte("on\n"), "127.0.0.1", port) {
		t.Fatal("SendTo() = false")
	}
	if got := readPeer(t, peer); got != "on\n" {
		t.Errorf("peer received %q, want %q", got, "on\n")
	}

	if !s.SendString("p\n", "127.0.0.1", port) {
		t.Fatal("SendString() = false")
	}
	if got := readPeer(t, peer); got != "p\n" {
		t.Errorf("peer received %q, want %q", got, "p\n")
	}
}

func TestSendTo_DefaultsToOwnPort(t *testing.T) {
	peer := listenPeer(t)
	port := peer.LocalAddr().(*net.UDPAddr).Port

	s, err := Open(context.Background(), SocketConfig{Port: port})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if !s.SendTo([]byte("q\n"), "127.0.0.1", 0) {
		t.Fatal("SendTo() = false")
	}
	if got := readPeer(t, peer); got != "q\n" {
		t.Errorf("peer received %q, want %q", got, "q\n")
	}
}

func TestSendTo_Failures(t *testing.T) {
	s := openLoopback(t)

	tests := []struct {
		name string
		host string
		port int
	}{
		{"hostnames are not resolved", "no.such.host", 14442},
		{"port out of range", "127.0.0.1", 70000},
	}
	for _, tt := range tests {
		if s.SendTo([]byte("on\n"), tt.host, tt.port) {
			t.Errorf("%s: SendTo(%q, %d) = true, want false", tt.name, tt.host, tt.port)
		}
	}

	var nilSocket *Socket
	if nilSocket.Send([]byte("on\n")) {
		t.Error("Send() on nil socket = true, want false")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.SendTo([]byte("on\n"), "127.0.0.1", 14442) {
		t.Error("SendTo() after Close = true, want false")
	}
}

func TestClose_Idempotent(t *testing.T) {
	s, err := Open(context.Background(), SocketConfig{BindAddress: "127.0.0.1"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	for i := range 2 {
		if err := s.Close(); err != nil {
			t.Errorf("Close() #%d error = %v", i+1, err)
		}
	}
	if !s.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if got := s.closes.Load(); got != 1 {
		t.Errorf("descriptor closed %d times, want 1", got)
	}
}
