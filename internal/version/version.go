// Package version reports the wfpack build.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func GoVersion() string {
	return runtime.Version()
}

// String is the one-line version banner.
func String() string {
	return fmt.Sprintf("wfpack %s (%s) built %s, %s", Version, Commit, BuildDate, GoVersion())
}
