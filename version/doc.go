// Package version exposes build information for the orchestrator binary.
//
// Values are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/orchestrator/version.Version=1.2.0 \
//	    -X github.com/kbukum/orchestrator/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Unstamped builds fall back to the VCS data recorded by the Go toolchain.
package version
