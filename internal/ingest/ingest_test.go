package ingest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/aidanlsb/tracemacro/internal/macro"
	"github.com/aidanlsb/tracemacro/internal/registry"
	"github.com/aidanlsb/tracemacro/internal/uid"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()

	basic := macro.New("TRACE")
	numbered := macro.New("TRACE_ID")
	numbered.IDEncoder = macro.StringAndNumerical
	skipped := macro.New("TRACE_RAW")
	skipped.SkipProcessing = true

	for _, d := range []macro.Definition{basic, numbered, skipped} {
		if err := reg.AddMacro(d); err != nil {
			t.Fatalf("failed to add macro: %v", err)
		}
	}
	return reg
}

func rec(file string, line int, macroName, token string) Record {
	return Record{Location: uid.Location{File: file, Line: line, Column: 1}, Macro: macroName, Token: token}
}

func TestParseRecords(t *testing.T) {
	input := strings.Join([]string{
		"# scanner output",
		"src/a.c\t10\t5\tTRACE\tNET_CONNECT",
		"",
		"src/b.c\t3\t\tTRACE_ID\tdisk_7",
		"./src//b.c\t4\t2\tTRACE\ttab\tinside",
	}, "\n")

	got, err := ParseRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Record{
		{Location: uid.Location{File: "src/a.c", Line: 10, Column: 5}, Macro: "TRACE", Token: "NET_CONNECT"},
		{Location: uid.Location{File: "src/b.c", Line: 3}, Macro: "TRACE_ID", Token: "disk_7"},
		{Location: uid.Location{File: "src/b.c", Line: 4, Column: 2}, Macro: "TRACE", Token: "tab\tinside"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseRecords() = %+v, want %+v", got, want)
	}

	if line := FormatRecord(want[0]); line != "src/a.c\t10\t5\tTRACE\tNET_CONNECT" {
		t.Errorf("FormatRecord() = %q", line)
	}
}

func TestParseRecordsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few fields", "a.c\t1\t1\tTRACE"},
		{"bad line", "a.c\tx\t1\tTRACE\ttok"},
		{"negative column", "a.c\t1\t-1\tTRACE\ttok"},
		{"empty file", "\t1\t1\tTRACE\ttok"},
		{"empty macro", "a.c\t1\t1\t \ttok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecords(strings.NewReader("# header\n" + tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "record line 2") {
				t.Errorf("error should name the input line: %v", err)
			}
		})
	}
}

func TestGroupUnitsKeepsFirstSeenOrder(t *testing.T) {
	units := GroupUnits([]Record{
		rec("b.c", 1, "T", "x"),
		rec("a.c", 1, "T", "y"),
		rec("b.c", 2, "T", "z"),
	})

	if len(units) != 2 || units[0].File != "b.c" || units[1].File != "a.c" {
		t.Fatalf("unexpected units: %+v", units)
	}
	if len(units[0].Records) != 2 || units[0].Records[1].Token != "z" {
		t.Errorf("b.c records = %+v", units[0].Records)
	}
}

func TestProcessUnit(t *testing.T) {
	reg := testRegistry(t)

	t.Run("decodes by scheme", func(t *testing.T) {
		got := ProcessUnit(reg, Unit{File: "a.c", Records: []Record{
			rec("a.c", 1, "TRACE", "NET"),
			rec("a.c", 2, "TRACE_ID", "disk_-7"),
		}})

		if got.Degraded || len(got.Diagnostics) != 0 {
			t.Fatalf("unexpected diagnostics: %+v", got.Diagnostics)
		}
		want := []Identity{
			{Macro: "TRACE", ID: "NET", Hash: uid.Hash("NET"), Location: uid.Location{File: "a.c", Line: 1, Column: 1}},
			{Macro: "TRACE_ID", ID: "disk", Hash: -7, Location: uid.Location{File: "a.c", Line: 2, Column: 1}},
		}
		if !reflect.DeepEqual(got.Identities, want) {
			t.Errorf("Identities = %+v, want %+v", got.Identities, want)
		}
	})

	t.Run("decode error degrades unit", func(t *testing.T) {
		got := ProcessUnit(reg, Unit{File: "a.c", Records: []Record{
			rec("a.c", 1, "TRACE", "FIRST"),
			rec("a.c", 2, "TRACE_ID", "noseparator"),
			rec("a.c", 3, "TRACE", "AFTER"),
			rec("a.c", 4, "TRACE_ID", "ok_1"),
		}})

		if !got.Degraded {
			t.Fatal("expected unit to be degraded")
		}
		if len(got.Identities) != 1 || got.Identities[0].ID != "FIRST" {
			t.Errorf("Identities = %+v", got.Identities)
		}
		if got.Skipped != 2 {
			t.Errorf("Skipped = %d, want 2", got.Skipped)
		}
		if len(got.Diagnostics) != 1 {
			t.Fatalf("Diagnostics = %+v", got.Diagnostics)
		}
		d := got.Diagnostics[0]
		if d.Code != CodeMalformedUniqueID || d.Severity != SeverityError || d.Location.Line != 2 {
			t.Errorf("diagnostic = %+v", d)
		}
		var malformed *uid.MalformedUniqueIDError
		if !errors.As(d.Err, &malformed) {
			t.Errorf("expected MalformedUniqueIDError, got %v", d.Err)
		}
	})

	t.Run("unknown macro warns and continues", func(t *testing.T) {
		got := ProcessUnit(reg, Unit{File: "a.c", Records: []Record{
			rec("a.c", 1, "NOPE", "x"),
			rec("a.c", 2, "TRACE", "y"),
		}})

		if got.Degraded {
			t.Fatal("unknown macro must not degrade the unit")
		}
		if len(got.Diagnostics) != 1 || got.Diagnostics[0].Code != CodeUnknownMacro || got.Diagnostics[0].Severity != SeverityWarning {
			t.Errorf("Diagnostics = %+v", got.Diagnostics)
		}
		if len(got.Identities) != 1 {
			t.Errorf("Identities = %+v", got.Identities)
		}
	})

	t.Run("skip processing", func(t *testing.T) {
		got := ProcessUnit(reg, Unit{File: "a.c", Records: []Record{
			rec("a.c", 1, "TRACE_RAW", "not even checked"),
		}})
		if got.Skipped != 1 || len(got.Identities) != 0 || len(got.Diagnostics) != 0 {
			t.Errorf("result = %+v", got)
		}
		if reg.Hidden() != 1 {
			t.Errorf("Hidden() = %d, want 1", reg.Hidden())
		}
	})
}

func TestRunIsolatesUnits(t *testing.T) {
	reg := testRegistry(t)
	records := []Record{
		rec("bad.c", 1, "TRACE_ID", "_5"),
		rec("bad.c", 2, "TRACE_ID", "fine_1"),
		rec("good.c", 1, "TRACE_ID", "net_2"),
		rec("good.c", 2, "TRACE", "plain"),
	}

	for _, jobs := range []int{1, 4} {
		t.Run(fmt.Sprintf("jobs=%d", jobs), func(t *testing.T) {
			var seen []string
			res, err := Run(context.Background(), reg, records, Options{
				Jobs: jobs,
				OnUnit: func(u UnitResult) error {
					seen = append(seen, u.File)
					return nil
				},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(seen, []string{"bad.c", "good.c"}) {
				t.Errorf("OnUnit order = %v", seen)
			}
			if res.DegradedUnits() != 1 {
				t.Errorf("DegradedUnits() = %d, want 1", res.DegradedUnits())
			}
			if res.IdentityCount() != 2 {
				t.Errorf("IdentityCount() = %d, want 2", res.IdentityCount())
			}
			errs, warnings := res.Counts()
			if errs != 1 || warnings != 0 {
				t.Errorf("Counts() = %d, %d", errs, warnings)
			}
		})
	}
}

func TestRunManyUnitsInOrder(t *testing.T) {
	reg := testRegistry(t)
	var records []Record
	for i := 0; i < 50; i++ {
		records = append(records, rec(fmt.Sprintf("f%02d.c", i), 1, "TRACE", fmt.Sprintf("ID%d", i)))
	}

	res, err := Run(context.Background(), reg, records, Options{Jobs: 8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, u := range res.Units {
		if want := fmt.Sprintf("f%02d.c", i); u.File != want {
			t.Fatalf("Units[%d].File = %s, want %s", i, u.File, want)
		}
	}
}

func TestRunOnUnitErrorAborts(t *testing.T) {
	reg := testRegistry(t)
	records := []Record{
		rec("a.c", 1, "TRACE", "x"),
		rec("b.c", 1, "TRACE", "y"),
		rec("c.c", 1, "TRACE", "z"),
	}

	sinkErr := errors.New("disk full")
	res, err := Run(context.Background(), reg, records, Options{
		OnUnit: func(u UnitResult) error {
			if u.File == "b.c" {
				return sinkErr
			}
			return nil
		},
	})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(res.Units) != 1 || res.Units[0].File != "a.c" {
		t.Errorf("Units = %+v", res.Units)
	}
}

func TestRunCancelled(t *testing.T) {
	reg := testRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []Record{rec("a.c", 1, "TRACE", "x"), rec("b.c", 1, "TRACE", "y")}
	_, err := Run(ctx, reg, records, Options{})
	// A cancelled context may still let an already-dispatched unit through,
	// but never the whole run.
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunEmpty(t *testing.T) {
	res, err := Run(context.Background(), registry.New(), nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Units) != 0 {
		t.Errorf("Units = %+v", res.Units)
	}
}

func TestCollisions(t *testing.T) {
	res := &Result{Units: []UnitResult{
		{File: "a.c", Identities: []Identity{{ID: "b", Hash: 1}, {ID: "a", Hash: 1}, {ID: "c", Hash: 2}}},
		{File: "b.c", Identities: []Identity{{ID: "a", Hash: 1}, {ID: "c", Hash: 2}}},
	}}

	got := res.Collisions()
	want := []Collision{{Hash: 1, IDs: []string{"a", "b"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collisions() = %+v, want %+v", got, want)
	}
}
