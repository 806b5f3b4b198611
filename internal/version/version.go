package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Info holds the build identity of one tool binary. The fields are set
// via ldflags by the release build; local builds fall back to whatever
// debug.ReadBuildInfo can recover.
type Info struct {
	ToolName       string
	Version        string
	CommitSHA      string
	BuildTimestamp string
}

// New creates an Info with the placeholder values a non-release build
// carries.
func New(toolName string) *Info {
	return &Info{
		ToolName:       toolName,
		Version:        "dev",
		CommitSHA:      "unknown",
		BuildTimestamp: "unknown",
	}
}

// Get returns version, commit and timestamp, filling placeholders from
// the embedded module build info when available.
func (i *Info) Get() (version, commit, timestamp string) {
	version = i.Version
	commit = i.CommitSHA
	timestamp = i.BuildTimestamp

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version, commit, timestamp
	}

	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if commit == "unknown" && len(setting.Value) >= 7 {
				commit = setting.Value[:7]
			}
		case "vcs.time":
			if timestamp == "unknown" {
				timestamp = setting.Value
			}
		}
	}

	return version, commit, timestamp
}

// UserAgent renders the identity sent on outbound API calls,
// e.g. "charmci-get-plan/1.2.3".
func (i *Info) UserAgent() string {
	version, _, _ := i.Get()

	return fmt.Sprintf("charmci-%s/%s", i.ToolName, version)
}

// Print outputs formatted version information to stdout.
func (i *Info) Print() {
	version, commit, timestamp := i.Get()
	fmt.Printf("%s version %s\n", i.ToolName, version)
	fmt.Printf("  commit:    %s\n", commit)
	fmt.Printf("  built:     %s\n", timestamp)
	fmt.Printf("  go:        %s\n", runtime.Version())
	fmt.Printf("  platform:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// String returns a one-line version string.
func (i *Info) String() string {
	version, _, _ := i.Get()

	return fmt.Sprintf("%s version %s", i.ToolName, version)
}
