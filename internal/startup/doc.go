// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is loaded from environment variables via [LoadConfig]:
//
//   - DATA_DIR: Root of the blob store and default policy location (default: /data)
//   - DATABASE_DIR: Directory holding media.db (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - POLICY_FILE: TOML media policy (default: DATA_DIR/policy.toml when present)
//   - TOOL_TIMEOUT: Limit for each external document command (default: 2m)
//   - PDF_COMPRESS_COMMAND, HTML_TO_PDF_COMMAND: Command templates
//   - USE_VIPS: Scale with libvips when available (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//
// Memory limits (GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO) are applied by the
// memory package.
//
// # Policy file
//
// The policy file has a [media] table with the fields of media.Policy and an
// optional [mime_types] table of extension to MIME type overrides. See
// [LoadPolicy].
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
