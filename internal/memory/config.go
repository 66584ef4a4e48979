package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for libvips and the external PDF tools.
const DefaultMemoryRatio = 0.85

// ConfigResult describes how GOMEMLIMIT was configured.
type ConfigResult struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container limit. Call it before
// any large allocation.
//
//   - GOMEMLIMIT, when set, wins and is only reported.
//   - MEMORY_LIMIT is the container limit in bytes.
//   - MEMORY_RATIO overrides DefaultMemoryRatio (0 < ratio <= 1).
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "none"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result = ConfigResult{Configured: true, Source: "GOMEMLIMIT", GoMemLimit: limit}
		}
		log.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		log.Debug("MEMORY_LIMIT not set, GOMEMLIMIT left unconfigured")
		return ConfigResult{Source: "none"}
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		log.Warn("ignoring invalid MEMORY_LIMIT %q", raw)
		return ConfigResult{Source: "none"}
	}

	ratio := DefaultMemoryRatio
	if s := os.Getenv("MEMORY_RATIO"); s != "" {
		parsed, err := strconv.ParseFloat(s, 64)
		switch {
		case err != nil:
			log.Warn("failed to parse MEMORY_RATIO %q: %v, using %.2f", s, err, DefaultMemoryRatio)
		case parsed <= 0 || parsed > 1:
			log.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using %.2f", s, DefaultMemoryRatio)
		default:
			ratio = parsed
		}
	}

	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)
	log.Info("configured GOMEMLIMIT %s (%.1f%% of %s container limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(limit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: limit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
