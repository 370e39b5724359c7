package cli

import (
	"github.com/spf13/cobra"
)

// VersionInfo holds build-time version information
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewVersionCommand creates the version command
func NewVersionCommand(versionInfo VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Display the version, build date, commit hash, and runtime information for the autopay agent.`,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(versionInfo)
		},
	}
}
