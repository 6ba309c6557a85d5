package ldup

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseHumanSize parses human-readable size strings (e.g., "2M", "512k", "1G").
// Suffixes are binary: K and KB mean KiB, as in the hash_buffer setting.
func ParseHumanSize(sizeStr string) (int, error) {
	trimmed := strings.TrimSpace(sizeStr)
	if trimmed == "" {
		return 0, fmt.Errorf("empty size string")
	}

	upper := strings.ToUpper(trimmed)
	for _, unit := range []string{"K", "M", "G"} {
		if strings.HasSuffix(upper, unit) {
			trimmed = trimmed[:len(trimmed)-1] + unit + "iB"
			break
		}
		if strings.HasSuffix(upper, unit+"B") {
			trimmed = trimmed[:len(trimmed)-2] + unit + "iB"
			break
		}
	}

	size, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid size string %s: %w", sizeStr, err)
	}
	if size == 0 {
		return 0, fmt.Errorf("size must be positive: %s", sizeStr)
	}
	if size > uint64(math.MaxInt) {
		return 0, fmt.Errorf("size too large: %s", sizeStr)
	}

	return int(size), nil
}

// formatBytes renders a byte count for log lines
func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
