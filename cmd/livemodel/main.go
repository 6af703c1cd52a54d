package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		lmerrors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "livemodel",
		Short: "Run and inspect live models",
		Long: `livemodel runs demo models on the livemodel engine and serves
the devtools API for inspecting them.

Configuration is read from livemodel.yaml in the working directory
(or --config) and overridden by LIVEMODEL_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to livemodel.yaml")

	rootCmd.AddCommand(
		demoCmd(opts),
		devtoolsCmd(opts),
		configCmd(opts),
		versionCmd(),
	)

	return rootCmd
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
