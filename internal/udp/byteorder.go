package udp

import (
	"encoding/binary"
	"math/bits"
)

// bigEndianHost reports whether the running machine stores integers
// most-significant byte first (network order).
var bigEndianHost = binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234

// HostToNetwork16 converts a 16-bit value from host to network byte order.
func HostToNetwork16(v uint16) uint16 { return swap16(v, bigEndianHost) }

// HostToNetwork32 converts a 32-bit value from host to network byte order.
func HostToNetwork32(v uint32) uint32 { return swap32(v, bigEndianHost) }

// HostToNetwork64 converts a 64-bit value from host to network byte order.
func HostToNetwork64(v uint64) uint64 { return swap64(v, bigEndianHost) }

// NetworkToHost16 converts a 16-bit value from network to host byte order.
func NetworkToHost16(v uint16) uint16 { return swap16(v, bigEndianHost) }

// NetworkToHost32 converts a 32-bit value from network to host byte order.
func NetworkToHost32(v uint32) uint32 { return swap32(v, bigEndianHost) }

// NetworkToHost64 converts a 64-bit value from network to host byte order.
func NetworkToHost64(v uint64) uint64 { return swap64(v, bigEndianHost) }

// The conversion is its own inverse: identity on big-endian hosts,
// a full byte reversal on little-endian ones.

func swap16(v uint16, bigEndian bool) uint16 {
	if bigEndian {
		return v
	}
	return bits.ReverseBytes16(v)
}

func swap32(v uint32, bigEndian bool) uint32 {
	if bigEndian {
		return v
	}
	return bits.ReverseBytes32(v)
}

func swap64(v uint64, bigEndian bool) uint64 {
	if bigEndian {
		return v
	}
	return bits.ReverseBytes64(v)
}
