// Package macro defines trace macro definitions: how a given logging macro
// encodes its arguments and which unique-ID scheme its call sites use.
package macro

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	goslug "github.com/gosimple/slug"
)

// EncoderKind selects the algorithm used to turn a raw unique-ID token into
// an identity. The zero value is Unspecified, which is never valid for decoding.
type EncoderKind int

const (
	Unspecified EncoderKind = iota
	Basic
	StringAndNumerical
)

func (k EncoderKind) String() string {
	switch k {
	case Unspecified:
		return "Unspecified"
	case Basic:
		return "Basic"
	case StringAndNumerical:
		return "StringAndNumerical"
	default:
		return fmt.Sprintf("EncoderKind(%d)", int(k))
	}
}

// Valid reports whether k is a scheme that can be used for decoding.
func (k EncoderKind) Valid() bool {
	return k == Basic || k == StringAndNumerical
}

// ErrUnknownEncoder is returned when an encoder name cannot be parsed.
var ErrUnknownEncoder = errors.New("unknown id encoder")

// ParseEncoderKind parses a persisted encoder name. Only the names of valid
// schemes are accepted; "Unspecified" is rejected like any other unknown name.
func ParseEncoderKind(name string) (EncoderKind, error) {
	switch name {
	case "Basic":
		return Basic, nil
	case "StringAndNumerical":
		return StringAndNumerical, nil
	default:
		return Unspecified, fmt.Errorf("%w: %q (expected Basic or StringAndNumerical)", ErrUnknownEncoder, name)
	}
}

// Definition describes one trace macro's encoding contract.
type Definition struct {
	// MacroName is the source-level macro identifier. Unique within a registry.
	MacroName string

	// SkipProcessing tells the scanner not to decode or validate IDs for this
	// macro. Transient; never persisted.
	SkipProcessing bool

	// EncodedPrefix is prepended when an already-encoded argument is embedded
	// back into generated output.
	EncodedPrefix string

	// EncodedArgNumber is the expected count of encodable arguments.
	EncodedArgNumber int

	// CustomSettings is passed through to code generation untouched.
	CustomSettings map[string]string

	// ExportModules lists the output modules this macro's trace data goes to.
	ExportModules []string

	// IDEncoder selects the decode scheme. Loaders default it to Basic.
	IDEncoder EncoderKind

	// ConfigSource records which configuration file contributed this
	// definition. Advisory only.
	ConfigSource string
}

// New returns a definition with the default Basic encoder.
func New(name string) Definition {
	return Definition{
		MacroName:      name,
		IDEncoder:      Basic,
		CustomSettings: make(map[string]string),
	}
}

// Encoder returns the scheme recorded on the definition.
func (d Definition) Encoder() EncoderKind {
	return d.IDEncoder
}

// CombinePrefixWithEncoded strips the delimiter characters surrounding an
// encoded argument and prepends EncodedPrefix.
//
// The caller guarantees encoded is wrapped in exactly one leading and one
// trailing delimiter byte; shorter input panics.
func (d Definition) CombinePrefixWithEncoded(encoded string) string {
	if len(encoded) < 2 {
		panic(fmt.Sprintf("macro %s: encoded argument %q is missing delimiters", d.MacroName, encoded))
	}
	return d.EncodedPrefix + encoded[1:len(encoded)-1]
}

// Validate checks the definition's own invariants. Uniqueness is enforced by
// the registry.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.MacroName) == "" {
		return fmt.Errorf("macro name is required")
	}
	if d.EncodedArgNumber < 0 {
		return fmt.Errorf("macro %s: encoded_arg_number must not be negative (got %d)", d.MacroName, d.EncodedArgNumber)
	}
	if !d.IDEncoder.Valid() {
		return fmt.Errorf("macro %s: %w: %s", d.MacroName, ErrUnknownEncoder, d.IDEncoder)
	}
	return nil
}

// Clone returns a deep copy so callers can't mutate registry-owned state.
func (d Definition) Clone() Definition {
	out := d
	if d.CustomSettings != nil {
		out.CustomSettings = make(map[string]string, len(d.CustomSettings))
		for k, v := range d.CustomSettings {
			out.CustomSettings[k] = v
		}
	}
	if d.ExportModules != nil {
		out.ExportModules = make([]string, len(d.ExportModules))
		copy(out.ExportModules, d.ExportModules)
	}
	return out
}

// SettingKeys returns the custom setting keys in sorted order.
func (d Definition) SettingKeys() []string {
	keys := make([]string, 0, len(d.CustomSettings))
	for k := range d.CustomSettings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasExportModule reports whether the macro exports into module.
func (d Definition) HasExportModule(module string) bool {
	for _, m := range d.ExportModules {
		if m == module {
			return true
		}
	}
	return false
}

// NormalizeModuleName converts a user-supplied export module name into the
// lowercase, dash-separated form used for generated output names.
func NormalizeModuleName(name string) string {
	return goslug.Make(strings.TrimSpace(name))
}
