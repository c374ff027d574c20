// Package bridge implements the packet dispatch core: it decodes inbound
// comm_msg frames, runs the connect handshake, routes payloads to the topic
// and parameter handlers, and pushes acknowledgements back through the
// transmit sink.
package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/osu-uwrt/riptide-fw-bridge/pkg/observability"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/protocol"
)

// TransmitFunc delivers one fully encoded frame to a client. It is invoked
// under the bridge's tx lock and must not be called concurrently by anything
// else sharing the underlying channel.
type TransmitFunc func(clientID int, data []byte)

// Handler is the capability contract for message handlers. ProcessMessage
// reports whether the handler claimed the message; a non-nil error means the
// payload was structurally present but could not be converted, and is
// recovered at the packet boundary. Handlers may send their own frames
// through the bridge before returning.
type Handler interface {
	ProcessMessage(clientID int, msg *protocol.CommMsg) (bool, error)
}

// chainEntry pairs a handler with its acknowledgement convention. The topic
// handler is auto-acked by the dispatcher; the parameter handler transmits
// its own replies and must not be acked twice.
type chainEntry struct {
	handler Handler
	autoAck bool
}

// Bridge is the per-target dispatcher. One instance lives for the process
// lifetime; ProcessPacket is safe for concurrent callers.
type Bridge struct {
	version uint32
	chain   []chainEntry

	tx   TransmitFunc
	txMu sync.Mutex

	log     *zap.Logger
	metrics *observability.BridgeMetrics
}

// New builds a bridge for a target. The protocol version is read once from
// the compiled-in schema revision and never changes afterwards. Handlers
// are installed separately with SetHandlers because they send through the
// bridge and so are constructed after it; metrics may be nil.
func New(target string, tx TransmitFunc, log *zap.Logger, metrics *observability.BridgeMetrics) *Bridge {
	if log == nil {
		log = zap.L()
	}
	return &Bridge{
		version: protocol.ProtocolVersion,
		tx:      tx,
		log:     log.Named("bridge").With(zap.String("target", target)),
		metrics: metrics,
	}
}

// SetHandlers installs the fixed-priority handler chain: topics first with
// auto-ack, params second acking for itself. Either may be nil (skipped).
// Must be called before the first packet arrives; membership never changes
// afterwards, so routing reads the chain without a lock.
func (b *Bridge) SetHandlers(topics, params Handler) {
	b.chain = b.chain[:0]
	if topics != nil {
		b.chain = append(b.chain, chainEntry{handler: topics, autoAck: true})
	}
	if params != nil {
		b.chain = append(b.chain, chainEntry{handler: params, autoAck: false})
	}
}

// ProtocolVersion returns the fixed version this bridge accepts on connect.
func (b *Bridge) ProtocolVersion() uint32 { return b.version }

// ProcessPacket runs one inbound frame through decode, the connect check,
// the handler chain and the acknowledgement step. Every failure is handled
// here; nothing propagates to the caller, so one client's bad frame cannot
// affect another client's processing.
func (b *Bridge) ProcessPacket(clientID int, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		b.log.Warn("corrupted packet received",
			zap.Int("client", clientID), zap.Error(err))
		b.metrics.DecodeFailure()
		return
	}
	b.metrics.Packet()

	sendAck := false
	if msg.Case == protocol.CaseConnectVer {
		if msg.ConnectVer == b.version {
			b.log.Info("client connected", zap.Int("client", clientID))
			sendAck = true
		} else {
			b.log.Warn("client connect with invalid protocol version",
				zap.Int("client", clientID),
				zap.Uint32("offered", msg.ConnectVer),
				zap.Uint32("expected", b.version))
		}
	} else if msg.Case == protocol.CaseNotSet {
		b.log.Warn("packet without a populated message",
			zap.Int("client", clientID))
		b.metrics.Unroutable()
	} else {
		claimed := false
		for _, e := range b.chain {
			ok, err := e.handler.ProcessMessage(clientID, msg)
			if err != nil {
				b.logConversionError(clientID, msg, err)
				b.metrics.ConversionError()
				return
			}
			if ok {
				claimed = true
				sendAck = e.autoAck
				break
			}
		}
		if !claimed {
			b.log.Warn("published on topic without an associated handler (check that publisher is enabled for target)",
				zap.Int("client", clientID),
				zap.String("topic", protocol.FieldName(int32(msg.Case))))
			b.metrics.Unroutable()
		}
	}

	// Clients that did not ask for confirmation get silence even on success.
	if sendAck && msg.Ack != 0 {
		b.Send(clientID, protocol.AckMsg(msg.Ack))
		b.metrics.Ack()
	}
}

func (b *Bridge) logConversionError(clientID int, msg *protocol.CommMsg, err error) {
	if msg.Case == protocol.CaseNotSet {
		b.log.Warn("invalid message with topic not set",
			zap.Int("client", clientID), zap.Error(err))
		return
	}
	b.log.Warn("invalid message published",
		zap.Int("client", clientID),
		zap.String("topic", protocol.FieldName(int32(msg.Case))),
		zap.Error(err))
}

// Send encodes msg and hands it to the transmit sink. Transmission is a
// critical section: the sink is a shared channel not assumed safe for
// concurrent invocation, so exactly one transmit proceeds at a time and the
// lock is released on every exit path.
func (b *Bridge) Send(clientID int, msg *protocol.CommMsg) {
	data, err := protocol.Encode(msg)
	if err != nil {
		b.log.Error("failed to serialize message to client",
			zap.Int("client", clientID), zap.Error(err))
		return
	}

	b.txMu.Lock()
	defer b.txMu.Unlock()
	b.tx(clientID, data)
	b.metrics.TxBytes(len(data))
}
