package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/integrity"
	"github.com/oxur/verovioxide-sub000/internal/release"
)

var hashCmd = &cobra.Command{
	Use:   "hash [archive]",
	Short: "Show the pinned Verovio release, or check an archive against it",
	Long: `Print the pinned Verovio version, source URL and SHA-256 hash.
With an archive argument, hash the file and compare it to the pinned value.`,
	RunE:         runHash,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func runHash(cmd *cobra.Command, args []string) error {
	r := release.Default()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		fmt.Fprintf(out, "Version: %s\n", r.Version)
		fmt.Fprintf(out, "URL:     %s\n", r.URL())
		fmt.Fprintf(out, "SHA256:  %s\n", r.Expected())
		fmt.Fprintf(out, "Verify:  %s\n", r.HashCommand())
		return nil
	}

	outcome, err := integrity.VerifyFile(args[0], r.Expected())
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", args[0], err)
	}

	if outcome.Mismatch() {
		return codes.New(codes.IntegrityMismatch,
			fmt.Errorf("%s does not match Verovio %s", args[0], r.Version),
			"Expected: "+r.Expected(),
			"Actual:   "+outcome.Actual,
		)
	}

	fmt.Fprintf(out, "%s  %s (OK)\n", outcome.Actual, args[0])
	return nil
}
