package registry

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/aidanlsb/tracemacro/internal/macro"
)

func TestNewStampsVersion(t *testing.T) {
	r := New()
	if r.Version() != CurrentVersion {
		t.Errorf("Version() = %d, want %d", r.Version(), CurrentVersion)
	}
	if err := r.CheckVersion(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckVersionRejectsUnknown(t *testing.T) {
	for _, v := range []int{0, 1, 3} {
		r := NewWithVersion(v)
		err := r.CheckVersion()
		var verr *UnsupportedVersionError
		if !errors.As(err, &verr) {
			t.Fatalf("version %d: expected UnsupportedVersionError, got %v", v, err)
		}
		if verr.Version != v {
			t.Errorf("Version = %d, want %d", verr.Version, v)
		}
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Error("expected error to wrap ErrUnsupportedVersion")
		}
	}
}

func TestAddMacro(t *testing.T) {
	t.Run("add and lookup", func(t *testing.T) {
		r := New()
		def := macro.New("TRACE")
		def.EncodedPrefix = "PRE_"
		if err := r.AddMacro(def); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := r.Lookup("TRACE")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.EncodedPrefix != "PRE_" {
			t.Errorf("EncodedPrefix = %q, want %q", got.EncodedPrefix, "PRE_")
		}
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		r := New()
		if err := r.AddMacro(macro.New("TRACE")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := r.AddMacro(macro.New("TRACE"))
		var dup *DuplicateMacroDefinitionError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateMacroDefinitionError, got %v", err)
		}
		if dup.MacroName != "TRACE" {
			t.Errorf("MacroName = %q, want %q", dup.MacroName, "TRACE")
		}
		if r.Len() != 1 {
			t.Errorf("Len() = %d, want 1", r.Len())
		}
	})

	t.Run("duplicate reports sources", func(t *testing.T) {
		r := New()
		a := macro.New("TRACE")
		a.ConfigSource = "a.json"
		b := macro.New("TRACE")
		b.ConfigSource = "b.json"
		_ = r.AddMacro(a)

		var dup *DuplicateMacroDefinitionError
		if !errors.As(r.AddMacro(b), &dup) {
			t.Fatal("expected DuplicateMacroDefinitionError")
		}
		if !reflect.DeepEqual(dup.Sources, []string{"a.json", "b.json"}) {
			t.Errorf("Sources = %v", dup.Sources)
		}
	})

	t.Run("invalid definition rejected", func(t *testing.T) {
		r := New()
		if err := r.AddMacro(macro.Definition{}); err == nil {
			t.Fatal("expected error for empty definition")
		}
	})

	t.Run("stored copy is isolated", func(t *testing.T) {
		r := New()
		def := macro.New("TRACE")
		def.ExportModules = []string{"core"}
		_ = r.AddMacro(def)

		def.ExportModules[0] = "mutated"
		got, _ := r.Lookup("TRACE")
		if got.ExportModules[0] != "core" {
			t.Errorf("registry state changed through caller slice: %v", got.ExportModules)
		}
	})
}

func TestLookupNotFound(t *testing.T) {
	r := New()
	_, err := r.Lookup("MISSING")
	if !errors.Is(err, ErrMacroNotFound) {
		t.Fatalf("expected ErrMacroNotFound, got %v", err)
	}
}

func TestRemoveMacroKeepsOrder(t *testing.T) {
	r := New()
	for _, name := range []string{"A", "B", "C", "D"} {
		if err := r.AddMacro(macro.New(name)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if !r.RemoveMacro("B") {
		t.Fatal("expected RemoveMacro to report removal")
	}
	if r.RemoveMacro("B") {
		t.Fatal("expected second RemoveMacro to report nothing removed")
	}

	if got, want := r.Names(), []string{"A", "C", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if _, err := r.Lookup("D"); err != nil {
		t.Errorf("lookup after removal failed: %v", err)
	}

	// Name is free again.
	if err := r.AddMacro(macro.New("B")); err != nil {
		t.Errorf("re-adding removed name failed: %v", err)
	}
}

func TestReplaceMacro(t *testing.T) {
	r := New()
	_ = r.AddMacro(macro.New("A"))
	_ = r.AddMacro(macro.New("B"))

	def := macro.New("A")
	def.IDEncoder = macro.StringAndNumerical
	if err := r.ReplaceMacro(def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := r.Lookup("A")
	if got.IDEncoder != macro.StringAndNumerical {
		t.Errorf("IDEncoder = %v, want StringAndNumerical", got.IDEncoder)
	}
	if r.Names()[0] != "A" {
		t.Errorf("replace moved macro: %v", r.Names())
	}

	if err := r.ReplaceMacro(macro.New("Z")); !errors.Is(err, ErrMacroNotFound) {
		t.Errorf("expected ErrMacroNotFound, got %v", err)
	}
}

func TestTables(t *testing.T) {
	r := New()
	r.SetLevel("ERROR", 2)
	r.SetKeyword("NET", 4)

	if v, ok := r.Level("ERROR"); !ok || v != 2 {
		t.Errorf("Level(ERROR) = %d, %v", v, ok)
	}
	if v, ok := r.Keyword("NET"); !ok || v != 4 {
		t.Errorf("Keyword(NET) = %d, %v", v, ok)
	}

	levels := r.Levels()
	levels["ERROR"] = 99
	if v, _ := r.Level("ERROR"); v != 2 {
		t.Error("Levels() returned a shared map")
	}
}

func TestHiddenCounter(t *testing.T) {
	r := New()
	r.IncHidden()
	if r.IncHidden() != 2 || r.Hidden() != 2 {
		t.Errorf("Hidden() = %d, want 2", r.Hidden())
	}
}

func TestConcurrentReaders(t *testing.T) {
	r := New()
	for _, name := range []string{"A", "B", "C"} {
		_ = r.AddMacro(macro.New(name))
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, err := r.Lookup("B"); err != nil {
					t.Errorf("lookup failed: %v", err)
					return
				}
				_ = r.Names()
			}
		}()
	}
	wg.Wait()
}
