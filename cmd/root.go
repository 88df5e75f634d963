package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "vxbuild",
	Short: "Build and link the Verovio C++ library",
	Long: `Locate or download the pinned Verovio sources, compile them into a
static library, cache the result and print the link directives needed
to link against it.`,
	RunE:          runBuild,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
}

// Execute runs the root command and exits with the code of the failure kind
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(codes.ExitCodeOf(err))
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	addBuildFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("manifest-dir", "", "Directory of the module being built (default: current directory)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(hashCmd)
}
