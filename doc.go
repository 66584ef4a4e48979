// Package main is the shelter media server.
//
// It stores photos, documents and links attached to shelter records
// (animals, people, lost and found reports, waiting list entries and
// incidents), normalizes pictures on the way in and serves them back to the
// web front end and the public adoption site.
//
// # Startup
//
//  1. Memory: GOMEMLIMIT from MEMORY_LIMIT when the environment does not set it
//  2. Configuration: environment variables plus the optional TOML policy file
//  3. Storage: SQLite media table and the content-addressed blob store
//  4. Imaging: libvips when USE_VIPS is true and the library loads
//  5. Document tools: PDF compression and HTML to PDF commands are probed
//  6. HTTP: API server plus the Prometheus server on METRICS_PORT
//
// # Environment Variables
//
//   - DATA_DIR: blob store and lock file directory (default: /data)
//   - DATABASE_DIR: directory for media.db (default: /database)
//   - PORT: API port (default: 8080)
//   - METRICS_PORT: metrics port (default: 9090)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - POLICY_FILE: TOML media policy (default: DATA_DIR/policy.toml if present)
//   - TOOL_TIMEOUT: limit for each external document command (default: 2m)
//   - PDF_COMPRESS_COMMAND, HTML_TO_PDF_COMMAND: external document commands
//   - USE_VIPS: prefer libvips for scaling (default: true)
//   - LOG_LEVEL: debug, info, warn or error
//   - LOG_HEALTH_CHECKS: include probe requests in the access log
//
// # Graceful Shutdown
//
// SIGINT and SIGTERM stop the API server first (30s limit), then the
// metrics collector, the memory monitor and the metrics server. The
// database and blob store close last.
//
// Batch maintenance (expiry sweep and bulk rescaling) lives in
// cmd/mediatool.
package main
