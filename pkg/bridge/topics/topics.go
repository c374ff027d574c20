// Package topics routes topic payload cases between firmware clients and
// in-process consumers. Inbound publishes fan out to subscribers; outbound
// pushes go to subscribed clients through the bridge send path.
package topics

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/osu-uwrt/riptide-fw-bridge/pkg/protocol"
)

// Sender is the bridge's send path.
type Sender interface {
	Send(clientID int, msg *protocol.CommMsg)
}

// Subscriber consumes inbound topic publishes.
type Subscriber func(topic string, payload []byte)

// Handler claims envelopes whose case is an enabled topic for the target.
type Handler struct {
	sender Sender
	log    *zap.Logger

	mu      sync.RWMutex
	enabled map[protocol.MsgCase]string
	subs    []Subscriber
	clients map[protocol.MsgCase]map[int]struct{}
}

// New resolves the enabled topic names against the field catalogue.
// A name not declared in the schema is a configuration error.
func New(sender Sender, topicNames []string, log *zap.Logger) (*Handler, error) {
	if log == nil {
		log = zap.L()
	}
	h := &Handler{
		sender:  sender,
		log:     log.Named("topics"),
		enabled: make(map[protocol.MsgCase]string, len(topicNames)),
		clients: make(map[protocol.MsgCase]map[int]struct{}),
	}
	for _, name := range topicNames {
		c, ok := protocol.CaseForName(name)
		if !ok {
			return nil, fmt.Errorf("topics: %q is not a declared comm_msg field", name)
		}
		h.enabled[c] = name
	}
	return h, nil
}

// ProcessMessage claims envelopes for enabled topic cases and fans the
// payload out to subscribers. An enabled case arriving with an empty payload
// is a conversion error.
func (h *Handler) ProcessMessage(clientID int, msg *protocol.CommMsg) (bool, error) {
	h.mu.RLock()
	name, ok := h.enabled[msg.Case]
	var subs []Subscriber
	if ok {
		subs = make([]Subscriber, len(h.subs))
		copy(subs, h.subs)
	}
	h.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if len(msg.Payload) == 0 {
		return false, fmt.Errorf("empty payload for topic %q", name)
	}

	h.log.Debug("topic published",
		zap.Int("client", clientID),
		zap.String("topic", name),
		zap.Int("bytes", len(msg.Payload)))
	for _, fn := range subs {
		fn(name, msg.Payload)
	}
	return true, nil
}

// Subscribe adds an in-process consumer for every inbound topic publish.
func (h *Handler) Subscribe(fn Subscriber) {
	h.mu.Lock()
	h.subs = append(h.subs, fn)
	h.mu.Unlock()
}

// SubscribeClient registers a client to receive outbound frames for a topic.
func (h *Handler) SubscribeClient(clientID int, topic string) error {
	c, ok := protocol.CaseForName(topic)
	if !ok {
		return fmt.Errorf("topics: %q is not a declared comm_msg field", topic)
	}
	h.mu.Lock()
	if h.clients[c] == nil {
		h.clients[c] = make(map[int]struct{})
	}
	h.clients[c][clientID] = struct{}{}
	h.mu.Unlock()
	return nil
}

// UnsubscribeClient drops a client from every topic, typically when its
// connection goes away.
func (h *Handler) UnsubscribeClient(clientID int) {
	h.mu.Lock()
	for _, set := range h.clients {
		delete(set, clientID)
	}
	h.mu.Unlock()
}

// Publish pushes a payload to every client subscribed to the topic through
// the bridge send path.
func (h *Handler) Publish(topic string, payload []byte) error {
	c, ok := protocol.CaseForName(topic)
	if !ok {
		return fmt.Errorf("topics: %q is not a declared comm_msg field", topic)
	}
	if len(payload) == 0 {
		return fmt.Errorf("topics: empty payload for %q", topic)
	}
	h.mu.RLock()
	ids := make([]int, 0, len(h.clients[c]))
	for id := range h.clients[c] {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.sender.Send(id, &protocol.CommMsg{Case: c, Payload: payload})
	}
	return nil
}
