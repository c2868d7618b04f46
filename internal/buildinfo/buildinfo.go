// Package buildinfo holds release metadata stamped into tmx at link time.
package buildinfo

// Release builds set these with
//
//	-ldflags "-X github.com/aidanlsb/tracemacro/internal/buildinfo.Version=v1.2.0 ..."
//
// They stay empty for `go install` and local builds, where the module's
// embedded VCS data is used instead.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

// Stamp is the ldflags metadata of a release build.
type Stamp struct {
	Version string
	Commit  string
	Date    string
}

// Stamped returns the link-time metadata and whether a version was set.
func Stamped() (Stamp, bool) {
	s := Stamp{Version: Version, Commit: Commit, Date: Date}
	return s, s.Version != ""
}
