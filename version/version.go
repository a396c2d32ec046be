package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// These variables are set at build time using -ldflags
	Version   = "dev"
	GitCommit = ""
	GitBranch = ""
	BuildTime = ""
	GoVersion = ""
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	GitBranch string    `json:"git_branch"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date"`
	IsDirty   bool      `json:"is_dirty"`
}

// GetVersionInfo merges the -ldflags values with the VCS settings the Go
// toolchain stamps into the binary. Ldflags win. BuildDate stays zero when
// neither source knows it.
func GetVersionInfo() *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		GoVersion: GoVersion,
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.GoVersion == "" {
		info.GoVersion = buildInfo.GoVersion
	}
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = setting.Value[:min(7, len(setting.Value))]
			}
		case "vcs.modified":
			info.IsDirty = setting.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil && info.BuildDate.IsZero() {
				info.BuildDate = t
			}
		}
	}
	return info
}

// GetShortVersion returns a short version string.
func GetShortVersion() string {
	info := GetVersionInfo()
	if info.GitCommit != "" {
		if info.IsDirty {
			return fmt.Sprintf("%s-%s-dirty", info.Version, info.GitCommit)
		}
		return fmt.Sprintf("%s-%s", info.Version, info.GitCommit)
	}
	return info.Version
}

// Banner is the one-line version output of the command named name, e.g.
// "varflow 1.0.0-abc1234 linux/amd64 go1.22.0 built 2024-01-15". A branch
// other than main or master follows the version.
func Banner(name string) string {
	info := GetVersionInfo()
	parts := []string{name, GetShortVersion()}
	if b := info.GitBranch; b != "" && b != "main" && b != "master" {
		parts = append(parts, "("+b+")")
	}
	goVersion := info.GoVersion
	if goVersion == "" {
		goVersion = runtime.Version()
	}
	parts = append(parts, runtime.GOOS+"/"+runtime.GOARCH, goVersion)
	if !info.BuildDate.IsZero() {
		parts = append(parts, "built "+info.BuildDate.UTC().Format(time.DateOnly))
	}
	return strings.Join(parts, " ")
}
