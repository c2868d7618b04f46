package ui

import "testing"

func TestTableAlignsColumns(t *testing.T) {
	tbl := NewTable(3)
	tbl.AddRow("TRACE", "Basic", "core")
	tbl.AddRow("TRACE_ID", "StringAndNumerical")

	want := "TRACE     Basic               core\n" +
		"TRACE_ID  StringAndNumerical  \n"
	if got := tbl.String(); got != want {
		t.Errorf("String() =\n%q\nwant\n%q", got, want)
	}
}

func TestTableEmpty(t *testing.T) {
	if got := NewTable(2).String(); got != "" {
		t.Errorf("String() = %q, want empty", got)
	}
}

func TestCount(t *testing.T) {
	if got := Count(1, "unit", "units"); got != "1 unit" {
		t.Errorf("Count(1) = %q", got)
	}
	if got := Count(0, "unit", "units"); got != "0 units" {
		t.Errorf("Count(0) = %q", got)
	}
}

func TestMarkdownWidth(t *testing.T) {
	tests := []struct {
		term int
		want int
	}{
		{200, 100},
		{80, 78},
		{20, 40},
	}
	for _, tt := range tests {
		d := &DisplayContext{TermWidth: tt.term}
		if got := d.MarkdownWidth(); got != tt.want {
			t.Errorf("MarkdownWidth(%d) = %d, want %d", tt.term, got, tt.want)
		}
	}
}
