package version

// Version is the version of the backtest engine, stamped into every stats.yaml.
// Release builds set it with ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-backtest/internal/version.Version=1.2.3"
// "main" marks a development build.
var Version = "main"

// GetVersion returns the current engine version.
func GetVersion() string {
	return Version
}
