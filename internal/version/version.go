// Package version holds the build version, overridable at link time:
//
//	go build -ldflags "-X github.com/copilotx/copilotx/internal/version.Version=v1.2.3"
package version

// Version is the copilotx release version.
var Version = "0.3.0"
