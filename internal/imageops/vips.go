package imageops

import (
	"errors"
	"fmt"
	"sync"

	"shelter-media/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

var errVipsUnavailable = errors.New("libvips not available")

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	vlog := logging.Component("vips")

	// Configure vips logging BEFORE Startup() to respect LOG_LEVEL
	var vipsLogLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelInfo:
		vipsLogLevel = vips.LogLevelWarning
	case logging.LevelWarn:
		vipsLogLevel = vips.LogLevelError
	default:
		vipsLogLevel = vips.LogLevelCritical
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level <= vips.LogLevelCritical:
			vlog.Error("[%s] %s", domain, msg)
		case level == vips.LogLevelWarning:
			vlog.Warn("[%s] %s", domain, msg)
		default:
			vlog.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// Start vips with conservative memory settings
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,                // Process one image at a time to control memory
		MaxCacheMem:      50 * 1024 * 1024, // 50MB cache
		MaxCacheSize:     100,              // Max 100 operations cached
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// scaleWithVips shrinks during decode, which keeps memory flat for large
// camera JPEGs. EXIF orientation is not applied; AutoRotate runs first.
func scaleWithVips(data []byte, side int) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, errVipsUnavailable
	}

	params := vips.NewImportParams()
	params.AutoRotate.Set(false)
	ref, err := vips.LoadImageFromBuffer(data, params)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if ref.Width()*ref.Height() > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, ref.Width(), ref.Height())
	}

	if ref.Width() > side || ref.Height() > side {
		if err := ref.Thumbnail(side, side, vips.InterestingNone); err != nil {
			return nil, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	out, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        JPEGQuality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}
