// internal/recording/naming.go
package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"myo-recorder/pkg/devicetypes"
)

// DefaultPrefix is used when no file prefix is configured
const DefaultPrefix = "myo_data"

const timestampLayout = "20060102_150405"

// EpochFileName builds "<prefix>[_<short id>]_<YYYYmmdd_HHMMSS>.csv"
func EpochFileName(prefix string, identity devicetypes.Identity, openedAt time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if short := identity.ShortID(); short != "" {
		return fmt.Sprintf("%s_%s_%s.csv", prefix, short, openedAt.Format(timestampLayout))
	}
	return fmt.Sprintf("%s_%s.csv", prefix, openedAt.Format(timestampLayout))
}

// EpochPath returns a path in dir that no existing file occupies. Epochs
// opened within the same second get a numeric suffix.
func EpochPath(dir, prefix string, identity devicetypes.Identity, openedAt time.Time) string {
	name := EpochFileName(prefix, identity, openedAt)
	path := filepath.Join(dir, name)

	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for n := 1; exists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ext))
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
