// Package registry holds the set of known trace macro definitions together
// with the level and keyword tables shared by every macro.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aidanlsb/tracemacro/internal/macro"
)

// CurrentVersion is the usage document format version this build understands.
const CurrentVersion = 2

var (
	// ErrMacroNotFound is returned by Lookup for unknown macro names.
	ErrMacroNotFound = errors.New("macro not defined")
	// ErrDuplicateMacro is wrapped by DuplicateMacroDefinitionError.
	ErrDuplicateMacro = errors.New("duplicate macro definition")
	// ErrUnsupportedVersion is wrapped by UnsupportedVersionError.
	ErrUnsupportedVersion = errors.New("unsupported usage format version")
)

// DuplicateMacroDefinitionError is returned when a macro name is registered twice.
type DuplicateMacroDefinitionError struct {
	MacroName string
	// Sources lists the config files of the existing and rejected definitions,
	// when known.
	Sources []string
}

func (e *DuplicateMacroDefinitionError) Error() string {
	if len(e.Sources) > 0 {
		return fmt.Sprintf("duplicate macro definition %q (defined in %v)", e.MacroName, e.Sources)
	}
	return fmt.Sprintf("duplicate macro definition %q", e.MacroName)
}

func (e *DuplicateMacroDefinitionError) Unwrap() error { return ErrDuplicateMacro }

// UnsupportedVersionError is returned for usage documents this build can't read.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported usage format version %d (expected %d)", e.Version, CurrentVersion)
}

func (e *UnsupportedVersionError) Unwrap() error { return ErrUnsupportedVersion }

// Registry is the full exported macro configuration.
//
// It is built once per configuration load and then read by scanners. Reads
// are safe from multiple goroutines; writes must not overlap scans.
type Registry struct {
	mu sync.RWMutex

	version  int
	levels   map[string]int
	keywords map[string]int
	macros   []macro.Definition
	byName   map[string]int

	// hidden is a transient counter; it is never persisted.
	hidden int
}

// New returns an empty registry stamped with CurrentVersion.
func New() *Registry {
	return NewWithVersion(CurrentVersion)
}

// NewWithVersion returns an empty registry with an explicit version, as read
// from a document. Call CheckVersion before using it.
func NewWithVersion(version int) *Registry {
	return &Registry{
		version:  version,
		levels:   make(map[string]int),
		keywords: make(map[string]int),
		byName:   make(map[string]int),
	}
}

// Version returns the format version.
func (r *Registry) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// CheckVersion rejects versions other than CurrentVersion.
func (r *Registry) CheckVersion() error {
	v := r.Version()
	if v != CurrentVersion {
		return &UnsupportedVersionError{Version: v}
	}
	return nil
}

// AddMacro inserts a definition, rejecting invalid definitions and names
// that are already registered.
func (r *Registry) AddMacro(def macro.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byName[def.MacroName]; ok {
		dup := &DuplicateMacroDefinitionError{MacroName: def.MacroName}
		if existing := r.macros[i].ConfigSource; existing != "" || def.ConfigSource != "" {
			dup.Sources = []string{existing, def.ConfigSource}
		}
		return dup
	}

	r.byName[def.MacroName] = len(r.macros)
	r.macros = append(r.macros, def.Clone())
	return nil
}

// RemoveMacro deletes a definition by name. It reports whether one existed.
func (r *Registry) RemoveMacro(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byName[name]
	if !ok {
		return false
	}

	r.macros = append(r.macros[:i], r.macros[i+1:]...)
	delete(r.byName, name)
	for j := i; j < len(r.macros); j++ {
		r.byName[r.macros[j].MacroName] = j
	}
	return true
}

// ReplaceMacro overwrites an existing definition in place, keeping its position.
func (r *Registry) ReplaceMacro(def macro.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byName[def.MacroName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMacroNotFound, def.MacroName)
	}
	r.macros[i] = def.Clone()
	return nil
}

// Lookup returns a copy of the named definition.
func (r *Registry) Lookup(name string) (macro.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byName[name]
	if !ok {
		return macro.Definition{}, fmt.Errorf("%w: %s", ErrMacroNotFound, name)
	}
	return r.macros[i].Clone(), nil
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.macros)
}

// Names returns macro names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.macros))
	for i, d := range r.macros {
		names[i] = d.MacroName
	}
	return names
}

// Definitions returns copies of all definitions in insertion order.
func (r *Registry) Definitions() []macro.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]macro.Definition, len(r.macros))
	for i, d := range r.macros {
		out[i] = d.Clone()
	}
	return out
}

// SetLevel sets a level name's numeric value.
func (r *Registry) SetLevel(name string, value int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[name] = value
}

// Level returns a level's numeric value.
func (r *Registry) Level(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.levels[name]
	return v, ok
}

// Levels returns a copy of the level table.
func (r *Registry) Levels() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyTable(r.levels)
}

// SetKeyword sets a keyword name's numeric value.
func (r *Registry) SetKeyword(name string, value int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keywords[name] = value
}

// Keyword returns a keyword's numeric value.
func (r *Registry) Keyword(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.keywords[name]
	return v, ok
}

// Keywords returns a copy of the keyword table.
func (r *Registry) Keywords() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyTable(r.keywords)
}

// IncHidden bumps the transient hidden counter and returns the new value.
func (r *Registry) IncHidden() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden++
	return r.hidden
}

// Hidden returns the transient hidden counter.
func (r *Registry) Hidden() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hidden
}

// SortedNames returns the keys of a name table in sorted order.
func SortedNames(table map[string]int) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyTable(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
