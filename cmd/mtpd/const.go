/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Daemon-wide constants and derived paths
 */

package main

import (
	"path/filepath"
	"time"
)

const (
	// PollInterval is how often the manager rescans for attached
	// devices when not running in demo mode.
	PollInterval = 2 * time.Second

	// ProbeRetryInterval is how long the manager waits before
	// retrying a device whose probe failed, so a device mid-boot
	// (still enumerating its own USB stack) isn't abandoned after
	// one bad attempt.
	ProbeRetryInterval = 5 * time.Second

	// EventReadTimeout bounds each interrupt-in read in a device's
	// event pump goroutine.
	EventReadTimeout = 30 * time.Second
)

// lockFileName and ctrlSocketName are joined onto the effective cache
// directory (config.CacheDir), mirroring the teacher's fixed
// PathLockFile/PathControlSocket but rooted under our own state dir so
// an unprivileged demo run and a privileged real run never collide.
const (
	lockFileName = "mtpd.lock"
	ctrlSocketName = "mtpd.sock"
)

func lockFilePath(cacheDir string) string {
	return filepath.Join(cacheDir, lockFileName)
}

func ctrlSocketPath(cacheDir string) string {
	return filepath.Join(cacheDir, ctrlSocketName)
}

// registryFilePath is where the ephemeral<->stable host-assigned-id
// side table (internal/device.Registry) persists across restarts.
func registryFilePath(cacheDir string) string {
	return filepath.Join(cacheDir, "registry.json")
}

// indexFilePath is the sqlite file internal/store opens for
// internal/index and internal/journal to share.
func indexFilePath(cacheDir string) string {
	return filepath.Join(cacheDir, "mtpd.db")
}
