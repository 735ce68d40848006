package buildtime

// Set at link time:
//
//	go build -ldflags "-X github.com/opst/chemviz/pkg/buildtime.version=v1.0.0 -X github.com/opst/chemviz/pkg/buildtime.revision=$(git rev-parse HEAD)"
var (
	version  = "devel"
	revision = "unknown"
)

// VERSION is the release name of this build.
func VERSION() string {
	return version
}

func GIT_REVISION() string {
	return revision
}

func VersionString() string {
	return version + " (commit: " + revision + ")"
}
