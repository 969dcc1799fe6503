/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Program configuration
 */

// Package config loads mtpd's on-disk configuration: an INI file
// populating the options table of spec.md §6, plus the path helpers
// that locate it, the cache/state directory, and the quirk database
// search path.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/mtplog"
)

// Configuration holds every option spec.md §6 names, adapted from the
// teacher's Configuration struct (conf.go) to the MTP domain.
type Configuration struct {
	VerboseLogging bool
	LogLevel       mtplog.Level

	IOTimeoutMs      int
	ConnectTimeoutMs int
	SessionTimeoutMs int
	ChunkSize        int
	MaxRetries       int
	RetryDelayMs     int
	RetryBackoff     float64

	DemoMode  bool
	RealOnly  bool

	TraceUSB      bool
	TraceMTP      bool
	TraceTransfer bool

	ForceChunked   bool
	DisablePartial bool

	// VendorOverride/ProductOverride are 0 when unset. Non-zero
	// values replace the USB-reported VID/PID for quirk matching
	// only (§6 "vendor-override / product-override").
	VendorOverride  uint16
	ProductOverride uint16

	CacheDir string
}

// Default returns the compiled-in defaults, applied before any file
// is read. These match internal/session's DefaultTuning. The timeouts
// also match internal/quirks' compiledDefaults, but the chunk size
// does not: 32 KiB here, 16 KiB there.
func Default() Configuration {
	return Configuration{
		LogLevel:         mtplog.LevelInfo,
		IOTimeoutMs:      5000,
		ConnectTimeoutMs: 10000,
		SessionTimeoutMs: 60000,
		ChunkSize:        32 * 1024,
		MaxRetries:       3,
		RetryDelayMs:     100,
		RetryBackoff:     2.0,
		CacheDir:         CacheDir(""),
	}
}

// Load reads path (an INI file in the teacher's conf.go shape) over
// top of Default(), leaving any option the file doesn't mention at
// its default. A missing file is not an error — it mirrors
// confLoadInternal's os.IsNotExist tolerance, since most options have
// a usable conservative default.
func Load(path string) (*Configuration, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %s", path, err)
	}

	logging := f.Section("logging")
	cfg.VerboseLogging = logging.Key("verbose-logging").MustBool(cfg.VerboseLogging)
	cfg.LogLevel = parseLogLevel(logging.Key("log-level").MustString(""), cfg.LogLevel)
	cfg.TraceUSB = logging.Key("trace-usb").MustBool(cfg.TraceUSB)
	cfg.TraceMTP = logging.Key("trace-mtp").MustBool(cfg.TraceMTP)
	cfg.TraceTransfer = logging.Key("trace-transfer").MustBool(cfg.TraceTransfer)

	transport := f.Section("transport")
	cfg.IOTimeoutMs = transport.Key("io-timeout-ms").MustInt(cfg.IOTimeoutMs)
	cfg.ConnectTimeoutMs = transport.Key("connect-timeout-ms").MustInt(cfg.ConnectTimeoutMs)
	cfg.SessionTimeoutMs = transport.Key("session-timeout-ms").MustInt(cfg.SessionTimeoutMs)
	cfg.ChunkSize = transport.Key("chunk-size").MustInt(cfg.ChunkSize)
	cfg.MaxRetries = transport.Key("max-retries").MustInt(cfg.MaxRetries)
	cfg.RetryDelayMs = transport.Key("retry-delay-ms").MustInt(cfg.RetryDelayMs)
	cfg.RetryBackoff = transport.Key("retry-backoff").MustFloat64(cfg.RetryBackoff)
	cfg.ForceChunked = transport.Key("force-chunked").MustBool(cfg.ForceChunked)
	cfg.DisablePartial = transport.Key("disable-partial").MustBool(cfg.DisablePartial)

	device := f.Section("device")
	cfg.DemoMode = device.Key("demo-mode").MustBool(cfg.DemoMode)
	cfg.RealOnly = device.Key("real-only").MustBool(cfg.RealOnly)
	cfg.VendorOverride = parseHexKey(device.Key("vendor-override").String(), cfg.VendorOverride)
	cfg.ProductOverride = parseHexKey(device.Key("product-override").String(), cfg.ProductOverride)

	storage := f.Section("storage")
	cfg.CacheDir = storage.Key("cache-dir").MustString(cfg.CacheDir)

	if cfg.DemoMode && cfg.RealOnly {
		return nil, fmt.Errorf("config: %s: demo-mode and real-only are mutually exclusive", path)
	}

	return &cfg, nil
}

// parseLogLevel maps spec.md §6's {trace,debug,info,warn,error}
// vocabulary onto mtplog's bit mask. mtplog has no separate warn bit
// (neither does the teacher's logger.go); warn is treated as the
// error threshold, matching the teacher's own LogLevel collapse.
func parseLogLevel(s string, fallback mtplog.Level) mtplog.Level {
	switch s {
	case "trace":
		return mtplog.LevelTraceAll
	case "debug":
		return mtplog.LevelDebug
	case "info":
		return mtplog.LevelInfo
	case "warn", "error":
		return mtplog.LevelError
	case "":
		return fallback
	default:
		return fallback
	}
}

func parseHexKey(s string, fallback uint16) uint16 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return fallback
	}
	return uint16(v)
}

// ConfPath returns the path Load should read from: the system config
// directory joined with ConfFileName, the same two-location search
// the teacher's ConfLoad performs (system file, then an
// executable-adjacent file), collapsed to a single caller-supplied
// root for testability.
func ConfPath(confDir string) string {
	if confDir == "" {
		confDir = PathConfDir
	}
	return filepath.Join(confDir, ConfFileName)
}
