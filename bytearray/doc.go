// Package bytearray is a growable, position-cursor byte buffer for
// building and parsing binary wire formats, grounded on the source's
// sylar::ByteArray (original_source/include/base/bytearray.hpp,
// original_source/src/base/bytearray.cpp) and on the fixed/varying-width
// field encoding protocol.EncodeFrameToBytes/
// DecodeFrameFromBytes perform by hand for a single frame type.
//
// The source's ByteArray is a linked list of fixed-size Nodes so a
// single instance can grow to gigabytes without a large contiguous
// realloc; that matters for a general-purpose socket buffer pool but
// not for the message-sized buffers tcpserver/httpserver/connpool build
// here, so this port collapses it to a single growable []byte slice
// (an ordinary bytes.Buffer-shaped type) while keeping the read/write
// API surface: fixed-width ints in a selectable endianness, varint
// ints, and length-prefixed strings.
package bytearray
