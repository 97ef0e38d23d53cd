package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietddude/tryon/internal/core/config"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tryon %s (model %s)\n", Version, config.DefaultModel)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
