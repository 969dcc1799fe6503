/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Common paths
 */

package config

import (
	"os"
	"path/filepath"
)

// Default path layout, mirroring the teacher's fixed /etc + /var
// split but rooted under a name of our own.
const (
	// PathConfDir is the directory searched for mtpd.conf.
	PathConfDir = "/etc/mtpd"

	// PathProgState is the root of mtpd's persistent state: the live
	// index, the transfer journal, probe receipts, and learned
	// profiles all live under here.
	PathProgState = "/var/lib/mtpd"

	// PathQuirksDir is the system-wide quirk database directory,
	// searched before the user's own.
	PathQuirksDir = PathConfDir + "/quirks.d"

	// ConfFileName is the name of mtpd's configuration file.
	ConfFileName = "mtpd.conf"
)

// CacheDir returns the effective cache/state directory: the
// configured override if non-empty, else PathProgState, else (when
// PathProgState is not writable, e.g. an unprivileged dev run) a
// directory under the user's own cache home.
func CacheDir(override string) string {
	if override != "" {
		return override
	}
	if isWritableDir(PathProgState) {
		return PathProgState
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "mtpd")
	}
	return filepath.Join(os.TempDir(), "mtpd")
}

// QuirksDirs returns the ordered list of directories searched for
// quirk database files: the system directory first, then a
// user-level override directory alongside the cache dir, matching
// the teacher's layered confLoad search order (system file, then
// executable-adjacent file).
func QuirksDirs(cacheDir string) []string {
	return []string{
		PathQuirksDir,
		filepath.Join(cacheDir, "quirks.d"),
	}
}

func isWritableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	probe := filepath.Join(dir, ".mtpd-write-probe")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}
