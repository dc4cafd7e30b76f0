package results

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/moznion/go-optional"
)

// Folder returns the result folder of one run:
//
//	<root>/<strategy>/<config name>[/<start>_<end>]/<data file name>
//
// The time range level only exists when the run was restricted to a range.
func Folder(root string, strategyName string, configPath string, dataPath string, start optional.Option[time.Time], end optional.Option[time.Time]) string {
	strategyFolder := filepath.Join(root, strategyName)

	configName := "default"
	if configPath != "" {
		configName = trimExt(configPath)
	}

	folder := filepath.Join(strategyFolder, configName)

	if start.IsSome() || end.IsSome() {
		startStr := "all"
		endStr := "all"

		if start.IsSome() {
			startStr = start.Unwrap().Format("20060102")
		}

		if end.IsSome() {
			endStr = end.Unwrap().Format("20060102")
		}

		folder = filepath.Join(folder, fmt.Sprintf("%s_%s", startStr, endStr))
	}

	return filepath.Join(folder, trimExt(dataPath))
}

func trimExt(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
