package udp

import (
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"
)

// Endpoint is a numeric peer address with its port in host byte order.
type Endpoint struct {
	Host string
	Port int
}

// String returns host:port, bracketing IPv6 hosts.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ResolveSockaddr converts a socket address returned by recvfrom into an
// Endpoint. Only IPv4 and IPv6 addresses are understood; any other
// family (or nil) yields false. No name lookup is performed.
func ResolveSockaddr(sa unix.Sockaddr) (Endpoint, bool) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return Endpoint{Host: netip.AddrFrom4(a.Addr).String(), Port: a.Port}, true
	case *unix.SockaddrInet6:
		addr := netip.AddrFrom16(a.Addr)
		if a.ZoneId != 0 {
			addr = addr.WithZone(strconv.FormatUint(uint64(a.ZoneId), 10))
		}
		return Endpoint{Host: addr.String(), Port: a.Port}, true
	default:
		return Endpoint{}, false
	}
}

// ResolveAddr is ResolveSockaddr for addresses reported by the net package.
func ResolveAddr(addr net.Addr) (Endpoint, bool) {
	ua, ok := addr.(*net.UDPAddr)
	if !ok || ua == nil {
		return Endpoint{}, false
	}
	ap := ua.AddrPort()
	if !ap.Addr().IsValid() {
		return Endpoint{}, false
	}
	return Endpoint{Host: ap.Addr().Unmap().String(), Port: int(ap.Port())}, true
}
