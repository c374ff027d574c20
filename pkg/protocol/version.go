package protocol

// ProtocolVersion is the compiled-in revision of comm.proto, mirrored from
// the schema's protocol_version option. Clients offer their own value in the
// connect handshake and are only acknowledged on an exact match. Bump on any
// incompatible schema change.
const ProtocolVersion uint32 = 7
