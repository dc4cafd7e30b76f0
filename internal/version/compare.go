package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

const devVersion = "main"

// CheckStatsCompatibility reports whether a stats document written by statsVersion can be
// read by engineVersion.
//
//   - "main" on either side skips the check
//   - major versions must match
//   - stats written by a newer minor version are rejected, older minors and any patch are fine
func CheckStatsCompatibility(engineVersion, statsVersion string) error {
	engineVersion = strings.TrimPrefix(engineVersion, "v")
	statsVersion = strings.TrimPrefix(statsVersion, "v")

	if engineVersion == devVersion || statsVersion == devVersion {
		return nil
	}

	engineSemver, err := semver.NewVersion(engineVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid engine version '%s'", engineVersion)
	}

	statsSemver, err := semver.NewVersion(statsVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid stats version '%s'", statsVersion)
	}

	if engineSemver.Major() != statsSemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "major version mismatch: engine is %d.x.x but stats were written by %d.x.x",
			engineSemver.Major(), statsSemver.Major())
	}

	if statsSemver.Minor() > engineSemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "stats were written by %d.%d.x, newer than engine %d.%d.x",
			statsSemver.Major(), statsSemver.Minor(),
			engineSemver.Major(), engineSemver.Minor())
	}

	return nil
}
