package udp

import (
	"bytes"
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultDatagramSize is the receive buffer used when a watch is given no size.
const DefaultDatagramSize = 4096

// watchQueueSize bounds the events buffered between the reader and the consumer.
const watchQueueSize = 16

// Datagram is one receive in raw mode.
//
// Err is set when the receive failed; Payload is then nil.
// HasSender is false when the sender's address family is not IPv4/IPv6.
type Datagram struct {
	Payload   []byte
	From      Endpoint
	HasSender bool
	Err       error
}

// Line is one datagram delivered as text in line mode.
type Line struct {
	Text      string
	From      Endpoint
	HasSender bool
}

// Record is a fixed-size binary message decoded from network byte order.
type Record interface {
	// Size is the exact datagram length of the record in bytes.
	Size() int
	UnmarshalBinary(data []byte) error
}

// RecordEvent is one decoded record in fixed-record mode.
type RecordEvent[T any] struct {
	Record    T
	From      Endpoint
	HasSender bool
}

// Watch is a cancellable subscription to the datagrams arriving on a
// socket. A dedicated goroutine waits for readability through the
// runtime network poller, receives, and delivers events on C in arrival
// order. C is closed when the watch ends, either through Cancel or after
// a terminal receive error.
//
// The watch owns the socket: Cancel shuts it down and closes it.
type Watch[T any] struct {
	// C delivers received events to a single consumer.
	C <-chan T

	events     chan T
	sock       *Socket
	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

// Cancel stops the watch and releases its socket. The socket is shut down
// and closed exactly once, however often Cancel is called.
func (w *Watch[T]) Cancel() {
	w.cancelOnce.Do(func() {
		close(w.cancel)
		_ = w.sock.Close()
	})
}

// Done is closed once the receiving goroutine has exited.
func (w *Watch[T]) Done() <-chan struct{} {
	return w.done
}

func (w *Watch[T]) cancelled() bool {
	select {
	case <-w.cancel:
		return true
	default:
		return w.sock.IsClosed()
	}
}

// emit hands ev to the consumer. It returns false if the watch was
// cancelled first.
func (w *Watch[T]) emit(ev T) bool {
	if w.cancelled() {
		return false
	}
	select {
	case w.events <- ev:
		return true
	case <-w.cancel:
		return false
	}
}

func startWatch[T any](s *Socket, loop func(w *Watch[T])) *Watch[T] {
	events := make(chan T, watchQueueSize)
	w := &Watch[T]{
		C:      events,
		events: events,
		sock:   s,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		defer close(w.events)
		loop(w)
	}()
	return w
}

// WatchDatagrams delivers each datagram as received (raw mode).
//
// Every readiness notification yields exactly one receive. A failed
// receive is reported once as a Datagram with Err set; an interrupted
// call is then followed by further receives, any other failure ends the
// watch.
func WatchDatagrams(s *Socket, maxSize int) *Watch[Datagram] {
	return watchDatagrams(s, maxSize, s.recv)
}

// recvFunc performs one receive; see Socket.recv.
type recvFunc func(buf []byte, retry bool) (int, unix.Sockaddr, error)

func watchDatagrams(s *Socket, maxSize int, recv recvFunc) *Watch[Datagram] {
	if maxSize <= 0 {
		maxSize = DefaultDatagramSize
	}
	return startWatch(s, func(w *Watch[Datagram]) {
		buf := make([]byte, maxSize)
		for {
			n, from, err := recv(buf, false)
			if w.cancelled() {
				return
			}
			if err != nil {
				if !w.emit(Datagram{Err: err}) || !errors.Is(err, unix.EINTR) {
					return
				}
				continue
			}
			ep, ok := ResolveSockaddr(from)
			if !w.emit(Datagram{Payload: bytes.Clone(buf[:n]), From: ep, HasSender: ok}) {
				return
			}
		}
	})
}

// WatchRecords decodes every datagram of exactly the record's size into
// a T (fixed-record mode). Datagrams of any other length are dropped.
// Interrupted and would-block receives are retried; other receive errors
// end the watch silently.
func WatchRecords[T any, P interface {
	*T
	Record
}](s *Socket) *Watch[RecordEvent[T]] {
	var zero T
	size := P(&zero).Size()

	return startWatch(s, func(w *Watch[RecordEvent[T]]) {
		if size <= 0 {
			return
		}
		// One spare byte so an oversized datagram cannot pass as a record.
		buf := make([]byte, size+1)
		for {
			n, from, err := s.recv(buf, true)
			if err != nil || w.cancelled() {
				return
			}
			if n != size {
				continue
			}
			var rec T
			if P(&rec).UnmarshalBinary(buf[:n]) != nil {
				continue
			}
			ep, ok := ResolveSockaddr(from)
			if !w.emit(RecordEvent[T]{Record: rec, From: ep, HasSender: ok}) {
				return
			}
		}
	})
}

// WatchLines delivers each datagram as text (line mode).
//
// The text ends at the first NUL byte and never exceeds maxSize-1 bytes.
// Interrupted and would-block receives are retried; other receive errors
// end the watch silently.
func WatchLines(s *Socket, maxSize int) *Watch[Line] {
	if maxSize < 2 {
		maxSize = DefaultDatagramSize
	}
	return startWatch(s, func(w *Watch[Line]) {
		buf := make([]byte, maxSize)
		for {
			n, from, err := s.recv(buf, true)
			if err != nil || w.cancelled() {
				return
			}
			if n > maxSize-1 {
				n = maxSize - 1
			}
			text := buf[:n]
			if i := bytes.IndexByte(text, 0); i >= 0 {
				text = text[:i]
			}
			ep, ok := ResolveSockaddr(from)
			if !w.emit(Line{Text: string(text), From: ep, HasSender: ok}) {
				return
			}
		}
	})
}

// recv parks until the socket is readable and performs one recvfrom.
// Would-block results always wait for the next readiness notification;
// with retry set, interrupted calls are repeated in place.
func (s *Socket) recv(buf []byte, retry bool) (int, unix.Sockaddr, error) {
	var (
		n       int
		from    unix.Sockaddr
		recvErr error
	)
	err := s.raw.Read(func(fd uintptr) bool {
		for {
			n, from, recvErr = unix.Recvfrom(int(fd), buf, 0)
			switch {
			case errors.Is(recvErr, unix.EAGAIN):
				return false
			case retry && errors.Is(recvErr, unix.EINTR):
				continue
			}
			return true
		}
	})
	if err != nil {
		return 0, nil, err
	}
	return n, from, recvErr
}
