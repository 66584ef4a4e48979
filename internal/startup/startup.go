package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"shelter-media/internal/document"
	"shelter-media/internal/logging"
	"shelter-media/internal/media"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	DataDir         string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	// PolicyFile is the TOML file holding the media policy; empty when the
	// built-in defaults are used.
	PolicyFile  string
	ToolTimeout time.Duration
	PDFCommand  string
	HTMLCommand string
	UseVips     bool

	// Derived paths
	DatabasePath string
	BlobDir      string
	LockPath     string

	Policy    media.Policy
	MimeTypes map[string]string
}

// LoadConfig loads and validates configuration from environment variables
// and the policy file.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()
	return loadConfig()
}

// LoadQuietConfig reads the same configuration as LoadConfig without the
// banner, for command line tools.
func LoadQuietConfig() (*Config, error) {
	return loadConfig()
}

func loadConfig() (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)
	policyFile := getEnv("POLICY_FILE", "")
	toolTimeoutStr := getEnv("TOOL_TIMEOUT", document.DefaultToolTimeout.String())
	pdfCommand := getEnv("PDF_COMPRESS_COMMAND", document.DefaultPDFCommand)
	htmlCommand := getEnv("HTML_TO_PDF_COMMAND", document.DefaultHTMLCommand)
	useVips := getEnvBool("USE_VIPS", true)

	logging.Info("  DATA_DIR:             %s", dataDir)
	logging.Info("  DATABASE_DIR:         %s", databaseDir)
	logging.Info("  PORT:                 %s", port)
	logging.Info("  METRICS_PORT:         %s", metricsPort)
	logging.Info("  METRICS_ENABLED:      %v", metricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:    %v", logHealthChecks)
	logging.Info("  POLICY_FILE:          %s", valueOrDash(policyFile))
	logging.Info("  TOOL_TIMEOUT:         %s", toolTimeoutStr)
	logging.Info("  USE_VIPS:             %v", useVips)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	toolTimeout, err := time.ParseDuration(toolTimeoutStr)
	if err != nil || toolTimeout <= 0 {
		logging.Warn("  Invalid TOOL_TIMEOUT, using default: %s", document.DefaultToolTimeout)
		toolTimeout = document.DefaultToolTimeout
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	for _, dir := range []struct{ path, name string }{{dataDir, "data"}, {databaseDir, "database"}} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}

	config := &Config{
		DataDir:         dataDir,
		DatabaseDir:     databaseDir,
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		LogHealthChecks: logHealthChecks,
		PolicyFile:      policyFile,
		ToolTimeout:     toolTimeout,
		PDFCommand:      pdfCommand,
		HTMLCommand:     htmlCommand,
		UseVips:         useVips,
		DatabasePath:    filepath.Join(databaseDir, "media.db"),
		BlobDir:         filepath.Join(dataDir, "dbfs"),
		LockPath:        filepath.Join(dataDir, "mediatool.lock"),
	}

	if config.PolicyFile == "" {
		if candidate := filepath.Join(dataDir, "policy.toml"); fileExists(candidate) {
			config.PolicyFile = candidate
		}
	}

	policy, mimeTypes, err := LoadPolicy(config.PolicyFile)
	if err != nil {
		return nil, err
	}
	config.Policy = policy
	config.MimeTypes = mimeTypes
	logPolicy(config)

	return config, nil
}

func logPolicy(c *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA POLICY")
	logging.Info("------------------------------------------------------------")
	if c.PolicyFile == "" {
		logging.Info("  Using built-in defaults")
	} else {
		logging.Info("  Loaded from %s", c.PolicyFile)
	}
	p := c.Policy
	logging.Info("  Uploads:         jpg=%s pdf=%s", enabledString(p.AllowJPG), enabledString(p.AllowPDF))
	logging.Info("  Incoming scale:  %s", p.IncomingScale)
	logging.Info("  PDF compression: %s (during attach: %s)", enabledString(p.ScalePDFs), enabledString(p.ScalePDFDuringAttach))
	if p.AutoRemoveDocumentMedia {
		logging.Info("  Document expiry: after %d years", p.AutoRemoveDocumentMediaYears)
	} else {
		logging.Info("  Document expiry: DISABLED")
	}
	if len(c.MimeTypes) > 0 {
		logging.Info("  Extra MIME types: %d", len(c.MimeTypes))
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STORAGE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogBlobStoreInit logs blob store initialization
func LogBlobStoreInit(dir string, duration time.Duration) {
	logging.Info("  [OK] Blob store at %s opened in %v", dir, duration)
}

// LogImagingInit logs which scaler is in use.
func LogImagingInit(vipsEnabled bool, err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("IMAGE PROCESSING")
	logging.Info("------------------------------------------------------------")
	switch {
	case err != nil:
		logging.Warn("  libvips unavailable: %v", err)
		logging.Warn("  Falling back to the pure Go scaler")
	case vipsEnabled:
		logging.Info("  [OK] libvips scaler enabled")
	default:
		logging.Info("  Using the pure Go scaler (USE_VIPS=false)")
	}
}

// LogToolsInit checks that the external document commands can be found.
func LogToolsInit(c *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DOCUMENT TOOLS")
	logging.Info("------------------------------------------------------------")
	for _, tool := range []struct{ name, command string }{
		{"PDF compression", c.PDFCommand},
		{"HTML to PDF", c.HTMLCommand},
	} {
		if err := checkTool(tool.command); err != nil {
			logging.Warn("  %s: %v", tool.name, err)
			logging.Warn("  %s will fall back to keeping the original", tool.name)
		} else {
			logging.Info("  [OK] %s available", tool.name)
		}
	}
	logging.Info("  Tool timeout: %v", c.ToolTimeout)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
   _____ __         ____               __  ___         ___
  / ___// /_  ___  / / /____  _____   /  |/  /__  ____/ (_)___ _
  \__ \/ __ \/ _ \/ / __/ _ \/ ___/  / /|_/ / _ \/ __  / / __ '/
 ___/ / / / /  __/ / /_/  __/ /     / /  / /  __/ /_/ / / /_/ /
/____/_/ /_/\___/_/\__/\___/_/     /_/  /_/\___/\__,_/_/\__,_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// checkTool resolves the program named by a command template and asks it
// for its version.
func checkTool(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("no command configured")
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return fmt.Errorf("%s not found in PATH", fields[0])
	}
	logging.Debug("  %s path: %s", fields[0], path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		// Some tools exit non-zero for --version; finding them is enough.
		logging.Debug("  %s --version: %v", fields[0], err)
		return nil
	}
	if lines := strings.SplitN(string(output), "\n", 2); len(lines) > 0 {
		logging.Debug("  %s version: %s", fields[0], strings.TrimSpace(lines[0]))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
