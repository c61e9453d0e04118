// Package udp provides the datagram transport used by the bridge.
//
// It covers three concerns:
//
//   - Byte order: HostToNetwork/NetworkToHost conversions for 16, 32 and
//     64-bit values.
//   - Sockets: Open creates a UDP socket with optional bind address,
//     SO_REUSEADDR and SO_BROADCAST; Send/SendTo transmit a datagram and
//     report success as a bool; Close shuts down and releases the
//     descriptor once.
//   - Watches: WatchDatagrams, WatchRecords and WatchLines turn a socket
//     into a channel of received events. Reads are driven by the runtime
//     network poller, so no goroutine spins on an idle socket.
//
// # Usage
//
//	sock, err := udp.Open(ctx, udp.SocketConfig{
//	    BindAddress:  "0.0.0.0",
//	    Port:         14443,
//	    ReuseAddress: true,
//	})
//	if err != nil {
//	    return err
//	}
//	w := udp.WatchLines(sock, udp.DefaultDatagramSize)
//	defer w.Cancel()
//	for line := range w.C {
//	    fmt.Println(line.From, line.Text)
//	}
//
// Sender addresses are resolved with ResolveSockaddr, which accepts only
// the IPv4 and IPv6 variants of unix.Sockaddr.
//
// The package targets Unix platforms.
package udp
