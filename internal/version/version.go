package version

// Set at build time with -ldflags "-X ...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
