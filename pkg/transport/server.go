package transport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// PacketSink consumes inbound frames; implemented by the bridge dispatcher.
type PacketSink interface {
	ProcessPacket(clientID int, data []byte)
}

// SessionHook observes client arrivals/departures, e.g. to drop topic
// subscriptions when a client goes away. May be nil.
type SessionHook func(clientID int, connected bool)

// Server assigns client ids to accepted sessions, pumps their frames into
// the sink, and routes outbound frames back by client id. It is the glue
// between the listeners and the bridge's transmit callback.
type Server struct {
	log  *zap.Logger
	hook SessionHook

	mu       sync.RWMutex
	sessions map[int]Session
	nextID   int
}

// NewServer builds an empty server; attach listeners with Serve.
func NewServer(log *zap.Logger, hook SessionHook) *Server {
	if log == nil {
		log = zap.L()
	}
	return &Server{
		log:      log.Named("transport"),
		hook:     hook,
		sessions: make(map[int]Session),
		nextID:   1,
	}
}

// Serve accepts sessions from l until ctx is done or the listener fails,
// spawning one read pump per session. It blocks; run it in a goroutine.
func (s *Server) Serve(ctx context.Context, l Listener, sink PacketSink) error {
	defer func() { _ = l.Close() }()
	for {
		sess, err := l.Accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		id := s.register(sess)
		s.log.Info("client session opened",
			zap.Int("client", id), zap.String("remote", sess.RemoteAddr().String()))
		go s.pump(ctx, id, sess, sink)
	}
}

// Transmit sends one encoded frame to a client. It matches the bridge's
// TransmitFunc signature. An unknown client id means the session closed
// underneath an in-flight send; the frame is dropped with a warning.
func (s *Server) Transmit(clientID int, data []byte) {
	s.mu.RLock()
	sess := s.sessions[clientID]
	s.mu.RUnlock()
	if sess == nil {
		s.log.Warn("transmit to unknown client", zap.Int("client", clientID))
		return
	}
	if err := sess.SendBytes(data); err != nil {
		s.log.Warn("transmit failed",
			zap.Int("client", clientID), zap.Error(err))
	}
}

func (s *Server) register(sess Session) int {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.sessions[id] = sess
	s.mu.Unlock()
	if s.hook != nil {
		s.hook(id, true)
	}
	return id
}

func (s *Server) unregister(id int) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	if s.hook != nil {
		s.hook(id, false)
	}
}

// pump feeds one session's frames into the sink. Frames from one client are
// processed in order; ordering across clients is not coordinated.
func (s *Server) pump(ctx context.Context, id int, sess Session, sink PacketSink) {
	defer func() {
		_ = sess.Close()
		s.unregister(id)
		s.log.Info("client session closed", zap.Int("client", id))
	}()
	for {
		if ctx.Err() != nil {
			return
		}
		data, err := sess.RecvBytes()
		if err != nil {
			return
		}
		sink.ProcessPacket(id, data)
	}
}
