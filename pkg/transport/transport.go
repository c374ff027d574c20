// Package transport delivers framed byte channels to the bridge. Frames are
// u32-LE length-prefixed; the bridge itself never sees the framing, only
// whole packets tagged with an opaque client id.
package transport

import (
	"context"
	"net"
)

// Kind identifies a transport implementation.
type Kind int

const (
	KindUnknown Kind = iota
	KindTCP
	KindMem
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindMem:
		return "mem"
	default:
		return "unknown"
	}
}

// MaxFrameSize bounds a single frame on the wire. Anything larger is a
// protocol violation and kills the session.
const MaxFrameSize = 1 << 24

// Session is one client link. SendBytes is safe for concurrent callers;
// RecvBytes expects a single reader.
type Session interface {
	// SendBytes writes one frame.
	SendBytes(b []byte) error
	// RecvBytes blocks for the next whole frame.
	RecvBytes() ([]byte, error)
	RemoteAddr() net.Addr
	Close() error
}

// Listener accepts inbound sessions.
type Listener interface {
	// Accept blocks until an inbound session is available or ctx is done.
	Accept(ctx context.Context) (Session, error)
	// Addr returns the local listening address.
	Addr() net.Addr
	// Close stops the listener and unblocks Accept.
	Close() error
}

// Transport provides dialing/listening for one link kind.
type Transport interface {
	Kind() Kind
	// Listen starts accepting inbound sessions on address
	// (transport-specific format).
	Listen(ctx context.Context, address string) (Listener, error)
	// Dial opens an outbound session, used by client tooling and tests.
	Dial(ctx context.Context, address string) (Session, error)
}
