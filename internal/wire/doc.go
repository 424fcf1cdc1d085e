// Package wire implements the length-prefixed binary framing used for job
// dispatch payloads sent to the out-of-process parser. The byte layout is
// part of the protocol between tagd and any parser built against it, so it
// is produced by hand with encoding/binary rather than a codec library.
package wire
