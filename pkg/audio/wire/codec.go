// Package wire implements the transport representation of audio chunks:
// a reversible base64 text encoding of raw PCM bytes plus the fixed
// "pcm16@<rate>" format tag that travels with every chunk.
//
// The encoding is the standard padded base64 alphabet (3 bytes → 4
// characters, no compression), so payload length is a function of input
// length alone and the round-trip law DecodePayload(EncodePayload(b)) == b
// holds for every byte sequence b.
package wire

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedEncoding is returned by [DecodePayload] when the input is not
// valid output of [EncodePayload] — non-alphabet characters or incorrect
// padding. It indicates a corrupted or protocol-mismatched chunk; callers
// surface it rather than retry.
var ErrMalformedEncoding = errors.New("wire: malformed encoding")

// EncodePayload converts an arbitrary byte sequence to its transport-safe
// text form. It never fails for valid byte input.
func EncodePayload(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodePayload is the inverse of [EncodePayload]. Invalid text yields an
// error wrapping [ErrMalformedEncoding].
func DecodePayload(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return b, nil
}

// CodecPCM16 is the only codec name this core speaks: 16-bit little-endian
// PCM. Tags with any other codec are rejected by [ParseTag].
const CodecPCM16 = "pcm16"

// Tag is the fixed format identifier attached to every chunk, e.g.
// "pcm16@16000". It fully determines how a payload is interpreted.
type Tag string

// NewTag builds the format tag for PCM16 at the given sample rate.
func NewTag(rate int) Tag {
	return Tag(CodecPCM16 + "@" + strconv.Itoa(rate))
}

// Rate returns the sample rate encoded in the tag, or an error if the tag is
// not a well-formed PCM16 tag.
func (t Tag) Rate() (int, error) {
	codec, rateStr, ok := strings.Cut(string(t), "@")
	if !ok {
		return 0, fmt.Errorf("wire: tag %q: missing '@' separator", t)
	}
	if codec != CodecPCM16 {
		return 0, fmt.Errorf("wire: tag %q: unsupported codec %q", t, codec)
	}
	rate, err := strconv.Atoi(rateStr)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("wire: tag %q: invalid sample rate", t)
	}
	return rate, nil
}

// Chunk is one opaque unit of encoded audio crossing the transport boundary.
// The core attaches no meaning to it beyond the tag.
type Chunk struct {
	// Payload is the base64 text form of the raw PCM bytes.
	Payload string

	// Format identifies codec and sample rate, e.g. "pcm16@16000".
	Format Tag
}

// Bytes decodes the chunk's payload back to raw PCM bytes.
func (c Chunk) Bytes() ([]byte, error) {
	return DecodePayload(c.Payload)
}
