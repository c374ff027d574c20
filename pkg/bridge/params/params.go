// Package params serves parameter get/set/delete/list requests against the
// parameter store. Request and reply bodies are CBOR maps. Replies go out
// directly through the bridge send path; the dispatcher never auto-acks this
// handler because the reply itself is the confirmation.
package params

import (
	"fmt"
	"time"

	cbor "github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/osu-uwrt/riptide-fw-bridge/pkg/paramstore"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/protocol"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/protocol/codec"
)

// Sender is the bridge's send path.
type Sender interface {
	Send(clientID int, msg *protocol.CommMsg)
}

// Request operations.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpList   = "list"
)

// Request is the decoded param_request body.
type Request struct {
	Op    string          `cbor:"op"`
	Name  string          `cbor:"name,omitempty"`
	Value cbor.RawMessage `cbor:"value,omitempty"`
	TTLMS int64           `cbor:"ttl_ms,omitempty"`
}

// Reply is the param_reply body. Ok reports whether the operation took
// effect (found for get, stored for set, existed for delete).
type Reply struct {
	Op    string          `cbor:"op"`
	Name  string          `cbor:"name,omitempty"`
	Ok    bool            `cbor:"ok"`
	Value cbor.RawMessage `cbor:"value,omitempty"`
	Names []string        `cbor:"names,omitempty"`
}

// Handler claims param_request envelopes.
type Handler struct {
	store  *paramstore.Store
	sender Sender
	body   codec.Codec
	log    *zap.Logger
}

// New builds the handler over a store.
func New(sender Sender, store *paramstore.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.L()
	}
	return &Handler{
		store:  store,
		sender: sender,
		body:   codec.CBOR(),
		log:    log.Named("params"),
	}
}

// ProcessMessage executes a parameter request and transmits the reply
// itself, echoing the inbound ack token in the reply envelope. A body that
// does not decode, an unknown op, or a missing operand is a conversion
// error returned to the dispatcher.
func (h *Handler) ProcessMessage(clientID int, msg *protocol.CommMsg) (bool, error) {
	if msg.Case != protocol.CaseParamRequest {
		return false, nil
	}
	var req Request
	if err := h.body.Unmarshal(msg.Payload, &req); err != nil {
		return false, fmt.Errorf("param request does not decode: %w", err)
	}

	rep, err := h.execute(req)
	if err != nil {
		return false, err
	}

	body, err := h.body.Marshal(rep)
	if err != nil {
		// Our own reply failed to serialize; the request was still handled.
		h.log.Error("failed to encode param reply",
			zap.Int("client", clientID), zap.Error(err))
		return true, nil
	}
	h.sender.Send(clientID, &protocol.CommMsg{
		Ack:     msg.Ack,
		Case:    protocol.CaseParamReply,
		Payload: body,
	})
	return true, nil
}

func (h *Handler) execute(req Request) (Reply, error) {
	rep := Reply{Op: req.Op, Name: req.Name}
	switch req.Op {
	case OpGet:
		if req.Name == "" {
			return rep, fmt.Errorf("param get without a name")
		}
		val, ok := h.store.Get(req.Name)
		rep.Ok = ok
		rep.Value = val
	case OpSet:
		if req.Name == "" {
			return rep, fmt.Errorf("param set without a name")
		}
		if len(req.Value) == 0 {
			return rep, fmt.Errorf("param set %q without a value", req.Name)
		}
		rep.Ok = h.store.Set(req.Name, req.Value, time.Duration(req.TTLMS)*time.Millisecond)
		if !rep.Ok {
			h.log.Warn("param set rejected by store", zap.String("name", req.Name))
		}
	case OpDelete:
		if req.Name == "" {
			return rep, fmt.Errorf("param delete without a name")
		}
		rep.Ok = h.store.Delete(req.Name)
	case OpList:
		rep.Ok = true
		rep.Names = h.store.Names(req.Name)
	default:
		return rep, fmt.Errorf("unknown param op %q", req.Op)
	}
	return rep, nil
}
