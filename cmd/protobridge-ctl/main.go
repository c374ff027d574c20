// protobridge-ctl is a debugging client: it dials a running node, performs
// the connect handshake, and can run a single parameter operation. Replies
// are debug-decoded to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/osu-uwrt/riptide-fw-bridge/pkg/bridge/params"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/protocol"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/protocol/codec"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/transport/tcp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:50124", "node address")
	op := flag.String("op", "", "optional parameter op: get, set, delete, list")
	name := flag.String("name", "", "parameter name (prefix for list)")
	value := flag.String("value", "", "parameter value for set")
	timeout := flag.Duration("timeout", 5*time.Second, "reply timeout")
	flag.Parse()

	if err := runCtl(*addr, *op, *name, *value, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCtl(addr, op, name, value string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sess, err := tcp.New().Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer sess.Close()
	// Reply reads have no deadline of their own; closing the session on
	// timeout unblocks them (a mismatched version never gets a reply).
	go func() { <-ctx.Done(); _ = sess.Close() }()

	// Connect handshake: offer our version and require the ack echo.
	connect, err := protocol.Encode(&protocol.CommMsg{
		Ack:        1,
		Case:       protocol.CaseConnectVer,
		ConnectVer: protocol.ProtocolVersion,
	})
	if err != nil {
		return err
	}
	if err := sess.SendBytes(connect); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}
	ack, err := recvMsg(sess)
	if err != nil {
		return fmt.Errorf("connect not acknowledged (version mismatch?): %w", err)
	}
	if ack.Ack != 1 {
		return fmt.Errorf("unexpected connect reply: ack=%d case=%s", ack.Ack, protocol.FieldName(int32(ack.Case)))
	}
	fmt.Printf("connected, protocol version %d\n", protocol.ProtocolVersion)

	if op == "" {
		return nil
	}

	body := codec.CBOR()
	req := params.Request{Op: op, Name: name}
	if op == params.OpSet {
		raw, err := body.Marshal(value)
		if err != nil {
			return err
		}
		req.Value = raw
	}
	payload, err := body.Marshal(req)
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(&protocol.CommMsg{Case: protocol.CaseParamRequest, Payload: payload})
	if err != nil {
		return err
	}
	if err := sess.SendBytes(frame); err != nil {
		return fmt.Errorf("send param request: %w", err)
	}

	msg, err := recvMsg(sess)
	if err != nil {
		return fmt.Errorf("recv param reply: %w", err)
	}
	if msg.Case != protocol.CaseParamReply {
		return fmt.Errorf("unexpected reply case %s", protocol.FieldName(int32(msg.Case)))
	}
	var rep params.Reply
	if err := body.Unmarshal(msg.Payload, &rep); err != nil {
		return fmt.Errorf("decode param reply: %w", err)
	}
	fmt.Printf("op=%s name=%q ok=%v\n", rep.Op, rep.Name, rep.Ok)
	if len(rep.Value) > 0 {
		var v any
		if err := cbor.Unmarshal(rep.Value, &v); err == nil {
			fmt.Printf("value: %v\n", v)
		}
	}
	for _, n := range rep.Names {
		fmt.Println(" ", n)
	}
	return nil
}

func recvMsg(sess interface{ RecvBytes() ([]byte, error) }) (*protocol.CommMsg, error) {
	data, err := sess.RecvBytes()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(data)
}
