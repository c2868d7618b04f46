// Package usagefile reads and writes usage registry documents.
//
// Documents are JSON by default; files ending in .yaml or .yml are YAML.
// Both formats share one persisted shape:
//
//	version: 2
//	levels:   {NAME: value}
//	keywords: {NAME: value}
//	macros:
//	  - macro_name, encoded_prefix, encoded_arg_number,
//	    custom_settings, export_modules, id_encoder (omitted when Basic)
//
// Transient state (the registry's hidden counter, a macro's skip flag and
// config source) is never written.
package usagefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/tracemacro/internal/atomicfile"
	"github.com/aidanlsb/tracemacro/internal/macro"
	"github.com/aidanlsb/tracemacro/internal/registry"
)

// Format is a document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ErrTableConflict is returned when merged documents disagree on a level or
// keyword value.
var ErrTableConflict = errors.New("conflicting table value")

type persistedDocument struct {
	Version  int              `json:"version" yaml:"version"`
	Levels   map[string]int   `json:"levels" yaml:"levels"`
	Keywords map[string]int   `json:"keywords" yaml:"keywords"`
	Macros   []persistedMacro `json:"macros" yaml:"macros"`
}

type persistedMacro struct {
	MacroName        string            `json:"macro_name" yaml:"macro_name"`
	EncodedPrefix    string            `json:"encoded_prefix" yaml:"encoded_prefix"`
	EncodedArgNumber int               `json:"encoded_arg_number" yaml:"encoded_arg_number"`
	CustomSettings   map[string]string `json:"custom_settings" yaml:"custom_settings"`
	ExportModules    []string          `json:"export_modules" yaml:"export_modules"`
	IDEncoder        *string           `json:"id_encoder,omitempty" yaml:"id_encoder,omitempty"`
}

// Load reads a usage document from path. The returned registry has passed
// version, uniqueness, and encoder validation.
func Load(path string) (*registry.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage file %s: %w", path, err)
	}

	reg, err := Decode(data, FormatForPath(path), path)
	if err != nil {
		return nil, fmt.Errorf("usage file %s: %w", path, err)
	}
	return reg, nil
}

// LoadAll loads several usage documents and merges them in order.
func LoadAll(paths ...string) (*registry.Registry, error) {
	merged := registry.New()
	for _, p := range paths {
		reg, err := Load(p)
		if err != nil {
			return nil, err
		}
		if err := Merge(merged, reg); err != nil {
			return nil, fmt.Errorf("merging %s: %w", p, err)
		}
	}
	return merged, nil
}

// Decode parses a document. source is recorded as each macro's ConfigSource.
func Decode(data []byte, format Format, source string) (*registry.Registry, error) {
	var doc persistedDocument
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	}

	reg := registry.NewWithVersion(doc.Version)
	if err := reg.CheckVersion(); err != nil {
		return nil, err
	}

	for name, v := range doc.Levels {
		reg.SetLevel(name, v)
	}
	for name, v := range doc.Keywords {
		reg.SetKeyword(name, v)
	}

	for i, pm := range doc.Macros {
		def, err := pm.toDefinition(source)
		if err != nil {
			return nil, fmt.Errorf("macros[%d]: %w", i, err)
		}
		if err := reg.AddMacro(def); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func (pm persistedMacro) toDefinition(source string) (macro.Definition, error) {
	def := macro.Definition{
		MacroName:        pm.MacroName,
		EncodedPrefix:    pm.EncodedPrefix,
		EncodedArgNumber: pm.EncodedArgNumber,
		CustomSettings:   pm.CustomSettings,
		ExportModules:    pm.ExportModules,
		IDEncoder:        macro.Basic,
		ConfigSource:     source,
	}
	if def.CustomSettings == nil {
		def.CustomSettings = make(map[string]string)
	}
	if def.ExportModules == nil {
		def.ExportModules = []string{}
	}

	if pm.IDEncoder != nil {
		kind, err := macro.ParseEncoderKind(*pm.IDEncoder)
		if err != nil {
			return macro.Definition{}, fmt.Errorf("macro %s: %w", pm.MacroName, err)
		}
		def.IDEncoder = kind
	}

	return def, nil
}

// Encode renders reg in format. The encoder is only written when it is not
// Basic; hidden and skip_processing are never written.
func Encode(reg *registry.Registry, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, reg, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes reg to w in format.
func EncodeTo(w io.Writer, reg *registry.Registry, format Format) error {
	doc := persistedDocument{
		Version:  reg.Version(),
		Levels:   reg.Levels(),
		Keywords: reg.Keywords(),
	}

	defs := reg.Definitions()
	doc.Macros = make([]persistedMacro, 0, len(defs))
	for _, d := range defs {
		doc.Macros = append(doc.Macros, fromDefinition(d))
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal json: %w", err)
		}
		return nil
	}
}

func fromDefinition(d macro.Definition) persistedMacro {
	pm := persistedMacro{
		MacroName:        d.MacroName,
		EncodedPrefix:    d.EncodedPrefix,
		EncodedArgNumber: d.EncodedArgNumber,
		CustomSettings:   d.CustomSettings,
		ExportModules:    d.ExportModules,
	}
	if pm.CustomSettings == nil {
		pm.CustomSettings = map[string]string{}
	}
	if pm.ExportModules == nil {
		pm.ExportModules = []string{}
	}
	// Basic is the default and is left implicit.
	if d.IDEncoder != macro.Basic {
		name := d.IDEncoder.String()
		pm.IDEncoder = &name
	}
	return pm
}

// Save writes a registry to path atomically, creating parent directories.
func Save(path string, reg *registry.Registry) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("usage file path is required")
	}

	format := FormatForPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create usage file directory: %w", err)
	}
	err := atomicfile.Write(path, 0o644, func(w io.Writer) error {
		return EncodeTo(w, reg, format)
	})
	if err != nil {
		return fmt.Errorf("failed to write usage file %s: %w", path, err)
	}
	return nil
}

// Merge copies src's macros and tables into dst. Duplicate macro names and
// conflicting table values are configuration errors.
func Merge(dst, src *registry.Registry) error {
	for name, v := range src.Levels() {
		if existing, ok := dst.Level(name); ok && existing != v {
			return fmt.Errorf("%w: level %s is %d and %d", ErrTableConflict, name, existing, v)
		}
		dst.SetLevel(name, v)
	}
	for name, v := range src.Keywords() {
		if existing, ok := dst.Keyword(name); ok && existing != v {
			return fmt.Errorf("%w: keyword %s is %d and %d", ErrTableConflict, name, existing, v)
		}
		dst.SetKeyword(name, v)
	}
	for _, d := range src.Definitions() {
		if err := dst.AddMacro(d); err != nil {
			return err
		}
	}
	return nil
}

// CreateDefault writes a starter usage document. It fails if path exists.
func CreateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("usage file already exists: %s", path)
	}

	reg := registry.New()
	reg.SetLevel("LEVEL_ERROR", 2)
	reg.SetLevel("LEVEL_WARNING", 3)
	reg.SetLevel("LEVEL_INFO", 4)
	reg.SetLevel("LEVEL_VERBOSE", 5)

	trace := macro.New("TRACE")
	trace.EncodedArgNumber = 1
	trace.ExportModules = []string{"default"}
	if err := reg.AddMacro(trace); err != nil {
		return err
	}

	return Save(path, reg)
}
