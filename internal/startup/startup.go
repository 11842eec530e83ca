package startup

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	"kiwi/internal/logging"
	"kiwi/internal/memory"
	"kiwi/internal/workers"
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

// DatabaseFile is the index file name inside DATABASE_DIR.
const DatabaseFile = "kiwi.db"

// Config holds all application configuration
type Config struct {
	LibraryDir      string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	SyncInterval    time.Duration
	PollInterval    time.Duration
	SyncWorkers     int
	SyncChunkSize   int
	SyncBatchSize   int
	FSTimeout       time.Duration
	ProbeImages     bool
	LogLevel        string
	LogFile         string
	LogHealthChecks bool

	// Derived paths
	DatabasePath string
}

// defaults are applied to keys missing from both the environment and the
// config file.
var defaults = map[string]any{
	"LIBRARY_DIR":       "/library",
	"DATABASE_DIR":      "/database",
	"PORT":              "8080",
	"METRICS_PORT":      "9090",
	"METRICS_ENABLED":   true,
	"SYNC_INTERVAL":     "30m",
	"POLL_INTERVAL":     "30s",
	"SYNC_WORKERS":      0,
	"SYNC_CHUNK_SIZE":   0,
	"SYNC_BATCH_SIZE":   500,
	"FS_TIMEOUT":        "10s",
	"PROBE_IMAGES":      false,
	"LOG_LEVEL":         "info",
	"LOG_FILE":          "",
	"LOG_HEALTH_CHECKS": true,
}

// NewViper returns a viper instance reading environment variables and,
// when configFile is set, that file (YAML, TOML or JSON by extension).
// Environment variables win over the file.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// LoadConfig loads and validates configuration from environment variables
// and the optional config file.
func LoadConfig(configFile string) (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := ReadConfig(configFile)
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if configFile != "" {
		logging.Info("  Config file:         %s", configFile)
	}
	logging.Info("  LIBRARY_DIR:         %s", cfg.LibraryDir)
	logging.Info("  DATABASE_DIR:        %s", cfg.DatabaseDir)
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  SYNC_INTERVAL:       %v", cfg.SyncInterval)
	logging.Info("  POLL_INTERVAL:       %v", cfg.PollInterval)
	logging.Info("  SYNC_WORKERS:        %d", cfg.SyncWorkers)
	logging.Info("  SYNC_CHUNK_SIZE:     %d", cfg.SyncChunkSize)
	logging.Info("  SYNC_BATCH_SIZE:     %d", cfg.SyncBatchSize)
	logging.Info("  FS_TIMEOUT:          %v", cfg.FSTimeout)
	logging.Info("  PROBE_IMAGES:        %v", cfg.ProbeImages)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	if cfg.LogFile != "" {
		logging.Info("  LOG_FILE:            %s", cfg.LogFile)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Library directory (absolute): %s", cfg.LibraryDir)
	logging.Info("  Database directory (absolute): %s", cfg.DatabaseDir)

	// The library may be mounted later; a sync fails cleanly until then.
	if err := checkLibrary(cfg.LibraryDir); err != nil {
		logging.Warn("  Library directory issue: %v", err)
	}

	if err := ensureDirectory(cfg.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Scheduled sync: %s", enabledString(cfg.SyncInterval > 0))
	logging.Info("    Change polling: %s", enabledString(cfg.PollInterval > 0))
	logging.Info("    Image probing:  %s", enabledString(cfg.ProbeImages))
	logging.Info("    Metrics:        %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// ReadConfig resolves configuration values without logging or touching
// the filesystem beyond reading configFile.
func ReadConfig(configFile string) (*Config, error) {
	v, err := NewViper(configFile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            v.GetString("PORT"),
		MetricsPort:     v.GetString("METRICS_PORT"),
		MetricsEnabled:  v.GetBool("METRICS_ENABLED"),
		SyncInterval:    durationValue(v, "SYNC_INTERVAL"),
		PollInterval:    durationValue(v, "POLL_INTERVAL"),
		SyncWorkers:     v.GetInt("SYNC_WORKERS"),
		SyncChunkSize:   v.GetInt("SYNC_CHUNK_SIZE"),
		SyncBatchSize:   v.GetInt("SYNC_BATCH_SIZE"),
		FSTimeout:       durationValue(v, "FS_TIMEOUT"),
		ProbeImages:     v.GetBool("PROBE_IMAGES"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFile:         v.GetString("LOG_FILE"),
		LogHealthChecks: v.GetBool("LOG_HEALTH_CHECKS"),
	}

	if cfg.LibraryDir, err = filepath.Abs(v.GetString("LIBRARY_DIR")); err != nil {
		return nil, fmt.Errorf("failed to resolve library directory path: %w", err)
	}
	if cfg.DatabaseDir, err = filepath.Abs(v.GetString("DATABASE_DIR")); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, DatabaseFile)

	if cfg.SyncWorkers < 1 {
		if cfg.ProbeImages {
			cfg.SyncWorkers = workers.ForMixed(32)
		} else {
			cfg.SyncWorkers = workers.ForIO(32)
		}
	}
	if cfg.SyncChunkSize < 1 {
		cfg.SyncChunkSize = memory.ChunkSize(memoryLimit(), workers.DefaultChunkSize)
	}
	if cfg.SyncBatchSize < 1 {
		logging.Warn("  Invalid SYNC_BATCH_SIZE %d, using default: 500", cfg.SyncBatchSize)
		cfg.SyncBatchSize = 500
	}
	if cfg.FSTimeout <= 0 {
		cfg.FSTimeout = 10 * time.Second
	}

	return cfg, nil
}

// durationValue parses a duration key, falling back to its default when
// the value is not a valid duration.
func durationValue(v *viper.Viper, key string) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		def, _ := defaults[key].(string)
		logging.Warn("  Invalid %s %q, using default: %s", key, raw, def)
		d, _ = time.ParseDuration(def)
	}
	return d
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogIndexerInit logs sync engine initialization
func LogIndexerInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SYNC ENGINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Sync interval:  %v", cfg.SyncInterval)
	logging.Info("  Poll interval:  %v", cfg.PollInterval)
	logging.Info("  Workers:        %d", cfg.SyncWorkers)
	logging.Info("  Chunk size:     %d", cfg.SyncChunkSize)
	logging.Info("  Batch size:     %d", cfg.SyncBatchSize)
	logging.Info("  Starting sync engine...")
}

// LogIndexerStarted logs successful sync engine start
func LogIndexerStarted() {
	logging.Info("  [OK] Sync engine started")
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
	logging.Info("    API:           http://0.0.0.0:%s/api/sync", config.Port)
	logging.Info("    Health:        http://0.0.0.0:%s/health", config.Port)
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

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __   _           _
   / /__(_)      __ (_)
  / //_/ / | /| / // /
 / ,< / /| |/ |/ // /
/_/|_/_/ |__/|__//_/

  library synchronization engine
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

// checkLibrary reports whether path is an existing directory and, in debug
// mode, how many item folders it holds.
func checkLibrary(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat library directory: %w", err)
	}
	if !info.IsDir() {
		return errors.New("path exists but is not a directory")
	}
	logging.Debug("    [OK] Library directory exists")

	if logging.IsDebugEnabled() {
		itemsDir := path
		if info, err := os.Stat(filepath.Join(path, "images")); err == nil && info.IsDir() {
			itemsDir = filepath.Join(path, "images")
		}
		if entries, err := os.ReadDir(itemsDir); err == nil {
			count := 0
			for _, e := range entries {
				if e.IsDir() && strings.HasSuffix(e.Name(), ".info") {
					count++
				}
			}
			logging.Debug("    Contents: %d item folders", count)
		}
	}
	return nil
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
		return errors.New("path exists but is not a directory")
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

// memoryLimit returns the Go heap limit, 0 when none is set.
func memoryLimit() int64 {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
		return limit
	}
	return 0
}
