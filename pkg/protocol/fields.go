package protocol

import "strconv"

// fieldNames is the static catalogue of declared comm_msg fields, tag to
// name, kept in lockstep with schema/comm.proto. The original toolchain
// derived this through descriptor reflection; a plain table gives the same
// answers without dragging generated descriptors into the hot path.
var fieldNames = map[int32]string{
	1: "ack",
	2: "connect_ver",
	3: "kill_switch",
	4: "depth_telemetry",
	5: "imu_telemetry",
	6: "actuator_status",
	7: "actuator_command",
	8: "param_request",
	9: "param_reply",
}

// FieldName resolves a field tag to its declared name for diagnostics.
// Undeclared tags (including the not-set sentinel 0) get a synthetic
// placeholder carrying the number.
func FieldName(tag int32) string {
	if name, ok := fieldNames[tag]; ok {
		return name
	}
	return "Unknown Topic Num " + strconv.FormatInt(int64(tag), 10)
}

// CaseForName is the reverse lookup, used when wiring config by topic name.
func CaseForName(name string) (MsgCase, bool) {
	for tag, n := range fieldNames {
		if n == name {
			return MsgCase(tag), true
		}
	}
	return CaseNotSet, false
}
