// Package version carries the release identity of a marketstream binary.
//
// Release builds stamp the three variables through the linker, e.g.
//
//	-ldflags "-X github.com/quantnexus/marketstream/internal/version.Version=v1.4.2"
//
// and likewise for Commit and BuildTime. Unstamped builds report "dev".
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String is what --version prints and what the startup log records.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent identifies marketstream on gateway REST calls.
func UserAgent() string {
	return "marketstream/" + Version
}
