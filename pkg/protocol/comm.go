// Package protocol models the comm_msg envelope exchanged with firmware
// clients and its protobuf wire encoding. The authoritative schema lives in
// schema/comm.proto; the Go types here mirror it field for field.
package protocol

// MsgCase identifies which field of the comm_msg union is populated.
// The zero value means no field is set. For payload cases the value is the
// field's tag number in comm.proto, so unrecognized tags still carry their
// number through to diagnostics.
type MsgCase int32

const (
	CaseNotSet MsgCase = 0

	// CaseConnectVer is the connection handshake: the client offers its
	// compiled-in protocol version and expects an ack on a match.
	CaseConnectVer MsgCase = 2

	// Topic cases. Payloads are opaque to the dispatcher.
	CaseKillSwitch      MsgCase = 3
	CaseDepthTelemetry  MsgCase = 4
	CaseImuTelemetry    MsgCase = 5
	CaseActuatorStatus  MsgCase = 6
	CaseActuatorCommand MsgCase = 7

	// Parameter cases. Request/reply bodies are CBOR maps handled by the
	// parameter handler.
	CaseParamRequest MsgCase = 8
	CaseParamReply   MsgCase = 9
)

// tagAck is the ack token field. It lives outside the msg union: any
// envelope may request an ack regardless of which case is set.
const tagAck = 1

// CommMsg is a single decoded envelope. At most one union case is populated;
// Ack is independent of the case.
type CommMsg struct {
	// Ack is an opaque token echoed back in the acknowledgement.
	// Zero means no acknowledgement was requested.
	Ack uint32

	// Case says which union field is populated, or CaseNotSet.
	Case MsgCase

	// ConnectVer is the client's offered protocol version.
	// Only meaningful when Case == CaseConnectVer.
	ConnectVer uint32

	// Payload holds the raw encoded bytes of the active payload case.
	// Nil for CaseNotSet and CaseConnectVer.
	Payload []byte
}

// AckMsg builds the minimal acknowledgement envelope for a token.
// No payload case is set; the token is copied from the inbound message.
func AckMsg(token uint32) *CommMsg { return &CommMsg{Ack: token} }
