// Package version carries the build version of varflow.
//
// Version, git commit, branch and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/varflow/version.Version=1.0.0" ./cmd/varflow
//
// Missing values fall back to the VCS stamp embedded by the Go toolchain.
package version
