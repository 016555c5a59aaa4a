// Package version carries build metadata, overridable with -ldflags.
package version

// Version and BuildDate are set at build time:
//
//	go build -ldflags "-X github.com/TFMV/kirby/version.Version=1.2.0"
var (
	Version   = "0.1.0"
	BuildDate = "2026-10-15"
	Commit    = "dev"
)

func GetVersion() string {
	return Version
}

func GetBuildDate() string {
	return BuildDate
}

// String renders the full version line.
func String() string {
	return "Kirby " + Version + " (" + Commit + ", " + BuildDate + ")"
}
