// Package protocol owns the High Tension wire contract.
//
// Ownership boundary:
// - frame: float64 word codec, delimiter framing and acknowledgment
// - session: connection wrapper sharing one stream between High Tension
//   Messages and newline-delimited Simple Text Messages
//
// Wire summary: a message is len*8 little-endian IEEE-754 words followed by
// the delimiter word 0x7ff800100400a05b. The receiver answers every
// delimiter with one acknowledgment byte. There is no length prefix.
package protocol
