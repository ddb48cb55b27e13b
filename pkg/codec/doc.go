// Package codec provides the event record framing used by the event store.
//
// Every event written to the append log is framed as a single opaque
// excerpt with the following structure:
//
//	[Timestamp(8)][TypeTag(1)][Payload]
//
// Fields:
//   - Timestamp: signed 64-bit milliseconds since the Unix epoch (big-endian)
//   - TypeTag: one byte identifying the payload type in the type registry
//   - Payload: the serialized object, opaque to the codec
//
// The header is 9 bytes. On top of that the append log needs room for its own
// length field, so the non-payload overhead reserved per entry is
//
//	EntryOverhead = 8 + 1 + 4 = 13 bytes
//
// The codec has no knowledge of the append log's block size. Callers compare
// EntrySize against the configured block size before writing.
//
// # Usage
//
//	raw := codec.Encode(time.Now().UnixMilli(), tag, payload)
//
//	rec, err := codec.Decode(raw)
//	if err != nil {
//	    return err
//	}
//
// For scans that only need the timestamp, DecodeHeader avoids touching the
// payload.
//
// # Thread Safety
//
// All functions are pure. Decoded records alias the input slice.
package codec
