package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/config"
	"github.com/oxur/verovioxide-sub000/internal/diag"
	"github.com/oxur/verovioxide-sub000/internal/fetch"
	"github.com/oxur/verovioxide-sub000/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build Verovio and print link directives",
	Long: `Obtain a compiled Verovio library (cached, prebuilt or compiled from
source) and print the directives needed to link against it.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("source-dir", "", "Use this Verovio source tree instead of locating one")
	f.String("checkout-dir", "", "Local Verovio checkout to try before downloading (default: <workspace>/verovio)")
	f.Bool("force-rebuild", false, "Ignore any cached library and compile again")
	f.Bool("bundled", config.DefaultBundled, "Compile Verovio from source when no cached library exists")
	f.Bool("prebuilt", config.DefaultPrebuilt, "Try downloading a prebuilt library before compiling")
	f.String("out-dir", "", "Directory for object files and the freshly built library")
	f.StringP("target", "t", "", "Target triple or GOOS/GOARCH (default: host)")
	f.Bool("offline", false, "Never download the source archive")
	f.Bool("lock-cache", false, "Hold an exclusive lock on the cache while building")
	f.String("cxx", "", "C++ compiler to use")
	f.String("ar", "", "Static archiver to use")
	f.StringP("format", "f", config.DefaultFormat, "Link directive format: lines, ldflags or cgo")
	f.String("cgo-file", "", "Write cgo directives to this file instead of stdout")
	f.String("cgo-package", config.DefaultCgoPackage, "Package name used in the generated cgo file")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return codes.New(codes.ConfigFailure, err)
	}

	logger := diag.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	defer func() { _ = logger.Sync() }()

	logger.Debugf("Target: %s (%s)", cfg.ParsedTarget, cfg.ParsedTarget.Triple())
	logger.Debugf("Workspace root: %s", cfg.WorkspaceRoot)
	logger.Debugf("Output directory: %s", cfg.OutDir)

	p := pipeline.New(cfg,
		pipeline.WithSink(logger),
		pipeline.WithStdout(cmd.OutOrStdout()),
		pipeline.WithDownloader(newDownloader(logger, cmd.ErrOrStderr())),
	)

	res, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	if !res.Skipped {
		logger.Debugf("Linking against %s (%s)", res.LibDir, res.Origin)
	}

	return nil
}

// newDownloader shows download progress only when stderr is a terminal
func newDownloader(sink diag.Sink, stderr io.Writer) *fetch.Downloader {
	if f, ok := stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return fetch.New(sink, fetch.WithProgress(stderr))
	}

	return fetch.New(sink)
}
