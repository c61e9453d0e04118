package udp

import (
	"net"
	"testing"

	"golang.org/x/sys/unix"
)

func TestResolveSockaddr(t *testing.T) {
	v6 := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x01}

	tests := []struct {
		name   string
		sa     unix.Sockaddr
		want   Endpoint
		wantOK bool
	}{
		{
			name:   "ipv4",
			sa:     &unix.SockaddrInet4{Port: 14442, Addr: [4]byte{192, 168, 1, 20}},
			want:   Endpoint{Host: "192.168.1.20", Port: 14442},
			wantOK: true,
		},
		{
			name:   "ipv6",
			sa:     &unix.SockaddrInet6{Port: 14443, Addr: v6},
			want:   Endpoint{Host: "2001:db8::1", Port: 14443},
			wantOK: true,
		},
		{
			name:   "ipv6 with zone",
			sa:     &unix.SockaddrInet6{Port: 80, ZoneId: 2, Addr: [16]byte{0xfe, 0x80, 15: 0x01}},
			want:   Endpoint{Host: "fe80::1%2", Port: 80},
			wantOK: true,
		},
		{
			name: "unix socket",
			sa:   &unix.SockaddrUnix{Name: "/run/orvibo.sock"},
		},
		{
			name: "nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveSockaddr(tt.sa)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ResolveSockaddr() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveAddr(t *testing.T) {
	tests := []struct {
		name   string
		addr   net.Addr
		want   Endpoint
		wantOK bool
	}{
		{"udp", &net.UDPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 9}, Endpoint{Host: "10.0.0.7", Port: 9}, true},
		{"tcp", &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 9}, Endpoint{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveAddr(tt.addr)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ResolveAddr() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEndpoint_String(t *testing.T) {
	tests := []struct {
		ep   Endpoint
		want string
	}{
		{Endpoint{Host: "10.0.0.7", Port: 9}, "10.0.0.7:9"},
		{Endpoint{Host: "2001:db8::1", Port: 14443}, "[2001:db8::1]:14443"},
	}

	for _, tt := range tests {
		if got := tt.ep.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
