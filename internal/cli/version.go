package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/buildinfo"
	"github.com/aidanlsb/tracemacro/internal/registry"
)

const defaultModulePath = "github.com/aidanlsb/tracemacro"

type versionInfo struct {
	Version      string `json:"version"`
	ModulePath   string `json:"module_path"`
	Commit       string `json:"commit,omitempty"`
	CommitTime   string `json:"commit_time,omitempty"`
	Modified     bool   `json:"modified"`
	UsageVersion int    `json:"usage_format_version"`
	GoVersion    string `json:"go_version"`
	Platform     string `json:"platform"`
}

var readBuildInfo = debug.ReadBuildInfo

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show tmx version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersionInfo()

		if isJSONOutput() {
			outputSuccess(info, nil)
			return nil
		}

		fmt.Printf("tmx %s\n", info.Version)
		if info.Commit != "" {
			suffix := ""
			if info.Modified {
				suffix = " (modified)"
			}
			fmt.Printf("commit: %s%s\n", info.Commit, suffix)
		}
		if info.CommitTime != "" {
			fmt.Printf("built: %s\n", info.CommitTime)
		}
		fmt.Printf("usage format: v%d\n", info.UsageVersion)
		fmt.Printf("go: %s %s\n", info.GoVersion, info.Platform)
		return nil
	},
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:      "devel",
		ModulePath:   defaultModulePath,
		UsageVersion: registry.CurrentVersion,
		GoVersion:    runtime.Version(),
	}
	goos, goarch := runtime.GOOS, runtime.GOARCH

	if bi, ok := readBuildInfo(); ok && bi != nil {
		if bi.Main.Path != "" {
			info.ModulePath = bi.Main.Path
		}
		info.Version = normalizeVersion(bi.Main.Version)
		if bi.GoVersion != "" {
			info.GoVersion = bi.GoVersion
		}
		if v := buildSetting(bi, "GOOS"); v != "" {
			goos = v
		}
		if v := buildSetting(bi, "GOARCH"); v != "" {
			goarch = v
		}
		info.Commit = buildSetting(bi, "vcs.revision")
		info.CommitTime = buildSetting(bi, "vcs.time")
		info.Modified = strings.EqualFold(buildSetting(bi, "vcs.modified"), "true")
	}
	info.Platform = goos + "/" + goarch

	stamp, stamped := buildinfo.Stamped()
	if info.Version == "devel" && stamped {
		info.Version = normalizeVersion(stamp.Version)
	}
	if info.Commit == "" {
		info.Commit = stamp.Commit
	}
	if info.CommitTime == "" {
		info.CommitTime = stamp.Date
	}
	return info
}

func normalizeVersion(version string) string {
	if version == "" || version == "(devel)" {
		return "devel"
	}
	return version
}

func buildSetting(info *debug.BuildInfo, key string) string {
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
