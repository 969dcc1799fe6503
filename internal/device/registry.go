/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device registry: ephemeral <-> stable id mapping
 */

package device

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Registry holds the ephemeral<->stable id mapping across plug/unplug
// cycles (SPEC_FULL.md §5), persisting only the heuristic-key ->
// host-assigned-id half: the ephemeral<->stable binding is inherently
// live (an ephemeral id is only meaningful while the device is
// attached) and is kept in memory only.
type Registry struct {
	mu   sync.Mutex
	path string

	// hostAssigned maps a no-serial device's best-effort identity key
	// (vid:pid:class:subclass:protocol, see HeuristicKey) to the host-minted stable id previously
	// assigned to it, so repeated plugs of the same physical device
	// resolve to the same stable id when no USB serial disambiguates
	// it. This is a heuristic, not a guarantee: two identical
	// no-serial devices are indistinguishable to the registry.
	hostAssigned map[string]string

	// live is the current ephemeral -> stable binding for attached
	// devices, rebuilt from scratch every process run.
	live map[EphemeralID]string
}

// LoadRegistry reads the persisted host-assigned-id side table from
// path, or returns an empty Registry if the file does not exist.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:         path,
		hostAssigned: map[string]string{},
		live:         map[EphemeralID]string{},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("device: registry: %s", err)
	}
	if err := json.Unmarshal(data, &r.hostAssigned); err != nil {
		return nil, fmt.Errorf("device: registry: %s: %s", path, err)
	}
	return r, nil
}

// Save writes the host-assigned-id side table to disk.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

func (r *Registry) saveLocked() error {
	if r.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("device: registry: %s", err)
	}
	data, err := json.MarshalIndent(r.hostAssigned, "", "  ")
	if err != nil {
		return fmt.Errorf("device: registry: %s", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("device: registry: %s", err)
	}
	return nil
}

// ResolveHostAssigned returns the previously-assigned stable id for
// heuristicKey, minting and persisting a fresh one (via
// NewHostAssignedID) if none exists yet.
func (r *Registry) ResolveHostAssigned(heuristicKey string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.hostAssigned[heuristicKey]; ok {
		return id, nil
	}

	id := NewHostAssignedID()
	r.hostAssigned[heuristicKey] = id
	return id, r.saveLocked()
}

// Bind records the live ephemeral -> stable binding for an attached
// device.
func (r *Registry) Bind(ephemeral EphemeralID, stableID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[ephemeral] = stableID
}

// Unbind removes the live binding, e.g. on device-detached.
func (r *Registry) Unbind(ephemeral EphemeralID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, ephemeral)
}

// StableFor returns the stable id currently bound to ephemeral, if
// any.
func (r *Registry) StableFor(ephemeral EphemeralID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.live[ephemeral]
	return id, ok
}

// HeuristicKey builds the best-effort identity key used when a device
// reports no USB serial: vid:pid plus the interface triple the probe
// selected, which at least distinguishes different products sharing
// a VID from each other.
func HeuristicKey(vid, pid uint16, ifaceClass, ifaceSubClass, ifaceProtocol uint8) string {
	return fmt.Sprintf("%04x:%04x:%02x:%02x:%02x", vid, pid, ifaceClass, ifaceSubClass, ifaceProtocol)
}
