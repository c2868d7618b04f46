// Package uid decodes the unique-ID token found at a trace macro call site
// into a canonical identity under the macro's encoder scheme.
package uid

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"github.com/aidanlsb/tracemacro/internal/macro"
)

// Separator splits the name and number parts of a StringAndNumerical token.
const Separator = "_"

// Identity is the canonical identity of a call site.
type Identity struct {
	ID   string `json:"id"`
	Hash int32  `json:"hash"`
}

// Location identifies where a token was found. The codec never interprets
// it; it only travels with errors.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func (l Location) String() string {
	file := l.File
	if file == "" {
		file = "<unknown>"
	}
	switch {
	case l.Line > 0 && l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", file, l.Line, l.Column)
	case l.Line > 0:
		return fmt.Sprintf("%s:%d", file, l.Line)
	default:
		return file
	}
}

// ErrDecode is wrapped by every error Decode returns.
var ErrDecode = errors.New("unique id decode failed")

// MalformedUniqueIDError reports a token that does not fit its scheme.
type MalformedUniqueIDError struct {
	Token    string
	Reason   string
	Location Location
}

func (e *MalformedUniqueIDError) Error() string {
	return fmt.Sprintf("%s: malformed unique id %q: %s", e.Location, e.Token, e.Reason)
}

func (e *MalformedUniqueIDError) Unwrap() error { return ErrDecode }

// InvalidEncoderSchemeError reports a scheme that cannot be decoded.
type InvalidEncoderSchemeError struct {
	Scheme   macro.EncoderKind
	Location Location
}

func (e *InvalidEncoderSchemeError) Error() string {
	return fmt.Sprintf("%s: invalid id encoder scheme %s", e.Location, e.Scheme)
}

func (e *InvalidEncoderSchemeError) Unwrap() error { return ErrDecode }

// Decode turns raw into an identity according to scheme.
func Decode(scheme macro.EncoderKind, raw string, loc Location) (Identity, error) {
	switch scheme {
	case macro.Basic:
		return Identity{ID: raw, Hash: Hash(raw)}, nil
	case macro.StringAndNumerical:
		return decodeStringAndNumerical(raw, loc)
	default:
		return Identity{}, &InvalidEncoderSchemeError{Scheme: scheme, Location: loc}
	}
}

func decodeStringAndNumerical(raw string, loc Location) (Identity, error) {
	idx := strings.LastIndex(raw, Separator)
	if idx < 0 {
		return Identity{}, &MalformedUniqueIDError{
			Token:    raw,
			Reason:   "expected format name_number",
			Location: loc,
		}
	}

	id := raw[:idx]
	if id == "" {
		return Identity{}, &MalformedUniqueIDError{
			Token:    raw,
			Reason:   "expected format name_number, name part is empty",
			Location: loc,
		}
	}

	n, err := strconv.ParseInt(raw[idx+len(Separator):], 10, 32)
	if err != nil {
		return Identity{}, &MalformedUniqueIDError{
			Token:    raw,
			Reason:   "unique id located but malformed: number part is not a 32-bit integer",
			Location: loc,
		}
	}

	return Identity{ID: id, Hash: int32(n)}, nil
}

// Hash is the Basic scheme hash: 32-bit FNV-1a over the token's bytes,
// reinterpreted as int32, then made non-negative. math.MinInt32 has no
// positive counterpart and saturates to math.MaxInt32.
func Hash(s string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	v := int32(h.Sum32())
	if v == math.MinInt32 {
		return math.MaxInt32
	}
	if v < 0 {
		return -v
	}
	return v
}
