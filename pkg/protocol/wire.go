package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxMessageSize is the largest frame the codec will attempt to decode.
// Mirrors the signed 32-bit length limit of the firmware-side parser.
const MaxMessageSize = math.MaxInt32

// ErrTooLarge is returned by Decode for frames above MaxMessageSize.
var ErrTooLarge = errors.New("protocol: message exceeds maximum size")

// Decode parses a comm_msg envelope from raw protobuf bytes.
//
// Known scalar fields (ack, connect_ver) must arrive with their declared
// wire type. Any other field number is treated as a payload case: its value
// bytes are captured verbatim and the case is set to the field number, so
// the dispatcher can still name unrecognized tags in diagnostics. When a
// case field repeats, the last occurrence wins, matching proto3 merge
// semantics for a oneof.
func Decode(data []byte) (*CommMsg, error) {
	if len(data) > MaxMessageSize {
		return nil, ErrTooLarge
	}
	m := &CommMsg{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("protocol: malformed tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == tagAck:
			if typ != protowire.VarintType {
				return nil, fmt.Errorf("protocol: ack: unexpected wire type %d", typ)
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: ack: %w", protowire.ParseError(n))
			}
			m.Ack = uint32(v)
			data = data[n:]

		case num == protowire.Number(CaseConnectVer):
			if typ != protowire.VarintType {
				return nil, fmt.Errorf("protocol: connect_ver: unexpected wire type %d", typ)
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: connect_ver: %w", protowire.ParseError(n))
			}
			m.Case = CaseConnectVer
			m.ConnectVer = uint32(v)
			m.Payload = nil
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("protocol: field %d: %w", num, protowire.ParseError(n))
			}
			if typ == protowire.BytesType {
				v, _ := protowire.ConsumeBytes(data)
				m.Payload = append([]byte(nil), v...)
			} else {
				m.Payload = append([]byte(nil), data[:n]...)
			}
			m.Case = MsgCase(num)
			m.ConnectVer = 0
			data = data[n:]
		}
	}
	return m, nil
}

// Encode serializes an envelope back to protobuf bytes. It fails only on an
// envelope the bridge should never construct: a payload case with no payload
// or a negative case number.
func Encode(m *CommMsg) ([]byte, error) {
	if m.Case < 0 {
		return nil, fmt.Errorf("protocol: invalid message case %d", m.Case)
	}
	var b []byte
	if m.Ack != 0 {
		b = protowire.AppendTag(b, tagAck, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Ack))
	}
	switch m.Case {
	case CaseNotSet:
		// ack-only envelope
	case CaseConnectVer:
		b = protowire.AppendTag(b, protowire.Number(CaseConnectVer), protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ConnectVer))
	default:
		if len(m.Payload) == 0 {
			return nil, fmt.Errorf("protocol: case %s has no payload", FieldName(int32(m.Case)))
		}
		b = protowire.AppendTag(b, protowire.Number(m.Case), protowire.BytesType)
		b = protowire.AppendBytes(b, m.Payload)
	}
	return b, nil
}
