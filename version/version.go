package version

import (
	"fmt"
	"runtime"
)

var (
	NAME     = "envdo"
	VERSION  = "unknown"
	REVISION = "HEAD"
	BUILTAT  = "now"
)

// String is the multi-line text printed by `envdo version`.
func String() string {
	return fmt.Sprintf(
		"%s\nVersion:        %s\nGit hash:       %s\nBuilt:          %s\nGolang version: %s\nOS/Arch:        %s/%s\n",
		NAME, VERSION, REVISION, BUILTAT, runtime.Version(), runtime.GOOS, runtime.GOARCH,
	)
}

// UserAgent identifies envdo in API requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", NAME, VERSION)
}
