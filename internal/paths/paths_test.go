package paths

import "testing"

func TestNormalizeSourcePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a.c", "a.c"},
		{"./src//a.c", "src/a.c"},
		{`src\net\a.c`, "src/net/a.c"},
		{"src/./net/../a.c", "src/a.c"},
		{"/abs/src/a.c", "/abs/src/a.c"},
		{"  src/a.c ", "src/a.c"},
	}

	for _, tt := range tests {
		if got := NormalizeSourcePath(tt.in); got != tt.want {
			t.Errorf("NormalizeSourcePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelativeTo(t *testing.T) {
	tests := []struct {
		p, root string
		want    string
	}{
		{"/repo/src/a.c", "/repo", "src/a.c"},
		{"/repo/src/a.c", "/repo/", "src/a.c"},
		{"/repository/a.c", "/repo", "/repository/a.c"},
		{"/repo", "/repo", "."},
		{"src/a.c", "", "src/a.c"},
		{"./src/a.c", ".", "src/a.c"},
	}

	for _, tt := range tests {
		if got := RelativeTo(tt.p, tt.root); got != tt.want {
			t.Errorf("RelativeTo(%q, %q) = %q, want %q", tt.p, tt.root, got, tt.want)
		}
	}
}
