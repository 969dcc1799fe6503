/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device manager: discovers attached MTP devices (real USB, or a
 * fixed set of virtual.Profile fixtures in demo mode), probes each
 * one, and keeps its façade, event pump and index/journal/status
 * bookkeeping alive for as long as it stays attached.
 */

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/config"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/device"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/index"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/journal"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/mtplog"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/probe"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/quirks"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/virtual"
)

// attachedDevice is everything the manager keeps alive for one
// currently-attached device.
type attachedDevice struct {
	desc     transport.DeviceDesc
	stableID string
	facade   *device.Device
	pump     *device.EventPump
	cancel   context.CancelFunc
}

// Manager owns the discover/probe/attach/detach lifecycle for every
// MTP device the daemon knows about, the real-USB equivalent of the
// teacher's PnP manager (pnp.go), generalized to MTP's richer
// per-device state (façade, event pump, index, journal).
type Manager struct {
	cfg      *config.Configuration
	log      *mtplog.Logger
	db       *quirks.DB
	registry *device.Registry
	idx      *index.Index
	jr       *journal.Journal

	mu          sync.Mutex
	attached    map[transport.Addr]*attachedDevice
	failedUntil map[transport.Addr]time.Time

	demoProfiles []virtual.Profile
}

// NewManager builds a Manager. db may be nil (no quirk database
// loaded; policy falls back to compiled defaults plus the class
// heuristic).
func NewManager(cfg *config.Configuration, log *mtplog.Logger, db *quirks.DB, registry *device.Registry, idx *index.Index, jr *journal.Journal) *Manager {
	return &Manager{
		cfg:          cfg,
		log:          log,
		db:           db,
		registry:     registry,
		idx:          idx,
		jr:           jr,
		attached:     map[transport.Addr]*attachedDevice{},
		failedUntil:  map[transport.Addr]time.Time{},
		demoProfiles: virtual.Profiles(),
	}
}

// Run discovers and manages devices until ctx is cancelled, then
// detaches everything still attached before returning.
func (m *Manager) Run(ctx context.Context) error {
	defer m.detachAll()

	if m.cfg.DemoMode {
		return m.runDemo(ctx)
	}
	return m.runReal(ctx)
}

// runDemo attaches every preset virtual.Profile once, synthesizing a
// DeviceDesc that matches the profile's own fingerprint, then idles
// until ctx is cancelled. Re-attach/detach cycling has nothing to
// observe in demo mode since there is no real bus to unplug from.
func (m *Manager) runDemo(ctx context.Context) error {
	for i, p := range m.demoProfiles {
		p := p
		addr := transport.Addr{Bus: 0, Address: i + 1}
		desc := transport.DeviceDesc{
			Addr:    addr,
			Vendor:  p.VID,
			Product: p.PID,
			BcdDev:  p.BcdDevice,
			IfDescs: []transport.IfDesc{{
				IfNum: 0, Alt: 0,
				Class: int(p.Iface.Class), SubClass: int(p.Iface.SubClass), Proto: int(p.Iface.Protocol),
			}},
		}

		dev := p.NewDevice()
		m.attach(ctx, desc, func() transport.Link { return virtual.NewLink(dev) })
	}

	<-ctx.Done()
	return ctx.Err()
}

// runReal polls transport.EnumerateMTP on PollInterval, attaching
// newly-seen devices and detaching ones that disappeared.
func (m *Manager) runReal(ctx context.Context) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		descs, err := transport.EnumerateMTP()
		if err != nil {
			m.log.Error('!', "enumerate: %s", err)
		} else {
			m.syncReal(ctx, descs)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Manager) syncReal(ctx context.Context, descs []transport.DeviceDesc) {
	seen := map[transport.Addr]bool{}

	for _, desc := range descs {
		if probe.RankInterface(bestIfDesc(desc)) == 0 {
			continue // no MTP/PTP-class interface on this device
		}
		seen[desc.Addr] = true

		m.mu.Lock()
		_, already := m.attached[desc.Addr]
		until, retrying := m.failedUntil[desc.Addr]
		m.mu.Unlock()

		if already || (retrying && time.Now().Before(until)) {
			continue
		}

		addr := desc.Addr
		m.attach(ctx, desc, func() transport.Link {
			link, err := transport.OpenUSBLink(addr)
			if err != nil {
				return errLink{err}
			}
			return link
		})
	}

	m.mu.Lock()
	var gone []transport.Addr
	for addr := range m.attached {
		if !seen[addr] {
			gone = append(gone, addr)
		}
	}
	m.mu.Unlock()

	for _, addr := range gone {
		m.detach(addr)
	}
}

// bestIfDesc returns the interface SelectInterface would choose, or
// the zero IfDesc if desc has none.
func bestIfDesc(desc transport.DeviceDesc) transport.IfDesc {
	ifd, _, err := probe.SelectInterface(desc)
	if err != nil || ifd == nil {
		return transport.IfDesc{}
	}
	return *ifd
}

// errLink is a transport.Link whose open, claim, transfer and reset
// methods all fail with err (Close returns nil), used when OpenUSBLink itself fails: probe.Run's newLink
// callback has no error return, so the failure is deferred to the
// first method call it actually makes (OpenUSB), which wraps the real
// one.
type errLink struct{ err error }

func (l errLink) OpenUSB(ctx context.Context) error { return l.err }
func (l errLink) ClaimInterface(ctx context.Context, num int) (transport.EndpointAddr, transport.EndpointAddr, transport.EndpointAddr, error) {
	return 0, 0, 0, l.err
}
func (l errLink) BulkOut(ctx context.Context, ep transport.EndpointAddr, data []byte, timeout time.Duration) (int, error) {
	return 0, l.err
}
func (l errLink) BulkIn(ctx context.Context, ep transport.EndpointAddr, maxBytes int, timeout time.Duration) ([]byte, error) {
	return nil, l.err
}
func (l errLink) InterruptIn(ctx context.Context, ep transport.EndpointAddr, timeout time.Duration) ([]byte, error) {
	return nil, l.err
}
func (l errLink) ResetDevice(ctx context.Context) error { return l.err }
func (l errLink) Close() error                          { return nil }
func (l errLink) String() string                        { return fmt.Sprintf("errlink(%s)", l.err) }

// attach probes desc via newLink and, on success, registers the
// resulting device.Device in the manager, index and status table.
func (m *Manager) attach(ctx context.Context, desc transport.DeviceDesc, newLink func() transport.Link) {
	fp := quirks.Fingerprint{VID: desc.Vendor, PID: desc.Product, BcdDevice: desc.BcdDev, Iface: ifaceTriple(bestIfDesc(desc))}

	var override *quirks.Override
	if m.cfg.VendorOverride != 0 || m.cfg.ProductOverride != 0 {
		// Vendor/product override only affects quirk matching, so it
		// belongs on fp, not on the resolver's Override stage.
		if m.cfg.VendorOverride != 0 {
			fp.VID = m.cfg.VendorOverride
		}
		if m.cfg.ProductOverride != 0 {
			fp.PID = m.cfg.ProductOverride
		}
	}

	result, err := probe.Run(ctx, desc, fp, "", m.db, nil, override, newLink)
	if err != nil {
		m.log.Error('!', "probe %s: %s", desc.Addr, err)
		m.mu.Lock()
		m.failedUntil[desc.Addr] = time.Now().Add(ProbeRetryInterval)
		m.mu.Unlock()
		StatusSet(desc.Addr, "", "", probe.Ladder{}, err)
		return
	}

	stableID := m.stableIDFor(fp, result)
	ephemeral := device.EphemeralIDFromAddr(desc.Addr)
	m.registry.Bind(ephemeral, stableID)

	facade := device.New(result, stableID, ephemeral)

	if err := m.idx.UpsertDevice(stableID, result.Info.Model, time.Now()); err != nil {
		m.log.Error('!', "index: %s", err)
	}
	for _, storageID := range mustStorageIDs(ctx, facade) {
		if info, err := facade.GetStorageInfo(ctx, storageID); err == nil {
			m.idx.UpsertStorage(stableID, index.StorageRow{
				StorageID: storageID, Description: info.StorageDescription,
				Capacity: info.MaxCapacity, Free: info.FreeSpaceBytes, ReadOnly: info.ReadOnly(),
			})
		}
	}

	devCtx, cancel := context.WithCancel(ctx)
	ad := &attachedDevice{desc: desc, stableID: stableID, facade: facade, cancel: cancel}

	if !result.Receipt.Policy.Flags.DisableEventPump {
		ad.pump = device.NewEventPump(result.Executor)
		go func() {
			err := ad.pump.Run(devCtx, EventReadTimeout, func(handle uint32) bool { return true })
			if err != nil && devCtx.Err() == nil {
				m.log.Error('!', "event pump %s: %s", desc.Addr, err)
			}
		}()
	}

	m.mu.Lock()
	m.attached[desc.Addr] = ad
	delete(m.failedUntil, desc.Addr)
	m.mu.Unlock()

	StatusSet(desc.Addr, stableID, result.Info.Model, result.Receipt.Ladder, nil)
	m.log.Info('+', "%s: attached as %s (%s)", desc.Addr, stableID, result.Info.Model)
}

// stableIDFor computes the device's stable identifier, minting (and
// persisting via the registry) a host-assigned one when the device
// reports no USB serial.
func (m *Manager) stableIDFor(fp quirks.Fingerprint, result *probe.Result) string {
	if result.Info.SerialNumber != "" {
		return device.StableID(fp.VID, fp.PID, result.Info.SerialNumber, "")
	}

	key := device.HeuristicKey(fp.VID, fp.PID, fp.Iface.Class, fp.Iface.SubClass, fp.Iface.Protocol)
	hostID, err := m.registry.ResolveHostAssigned(key)
	if err != nil {
		m.log.Error('!', "registry: %s", err)
	}
	return device.StableID(fp.VID, fp.PID, "", hostID)
}

func mustStorageIDs(ctx context.Context, facade *device.Device) []uint32 {
	ids, err := facade.GetStorageIDs(ctx)
	if err != nil {
		return nil
	}
	return ids
}

func (m *Manager) detach(addr transport.Addr) {
	m.mu.Lock()
	ad, ok := m.attached[addr]
	if ok {
		delete(m.attached, addr)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	ad.cancel()
	if ad.pump != nil {
		ad.pump.CloseAll()
	}
	if err := ad.facade.Close(context.Background()); err != nil {
		m.log.Error('!', "close %s: %s", addr, err)
	}
	m.registry.Unbind(device.EphemeralIDFromAddr(addr))
	StatusDel(addr)
	m.log.Info('-', "%s: detached (%s)", addr, ad.stableID)
}

func (m *Manager) detachAll() {
	m.mu.Lock()
	var addrs []transport.Addr
	for addr := range m.attached {
		addrs = append(addrs, addr)
	}
	m.mu.Unlock()

	for _, addr := range addrs {
		m.detach(addr)
	}
}

func ifaceTriple(ifd transport.IfDesc) quirks.InterfaceTriple {
	return quirks.InterfaceTriple{Class: uint8(ifd.Class), SubClass: uint8(ifd.SubClass), Protocol: uint8(ifd.Proto)}
}
