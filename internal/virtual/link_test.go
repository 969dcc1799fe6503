package virtual

import (
	"bytes"
	"context"
	"testing"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/device"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/probe"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
)

// newTestFacade opens a session over a fresh virtual.Link for profile
// and wraps it in a device.Device, mirroring the scripted-link test
// pattern internal/device's own tests use, but driving a real Link
// implementation instead of a per-test fake.
func newTestFacade(t *testing.T, p Profile, ladder probe.Ladder) (*device.Device, *Device) {
	t.Helper()
	dev := p.NewDevice()
	link := NewLink(dev)

	ex := session.New(link, session.DefaultTuning())
	ctx := context.Background()
	if err := ex.OpenUSB(ctx, 0); err != nil {
		t.Fatalf("OpenUSB: %s", err)
	}
	if err := ex.OpenSession(ctx, 1); err != nil {
		t.Fatalf("OpenSession: %s", err)
	}

	info := &probe.DeviceInfo{OperationsSupported: p.OperationsSupported}
	result := &probe.Result{Executor: ex, Info: info, Receipt: &probe.Receipt{Ladder: ladder}}
	return device.New(result, "stable-1", device.EphemeralID{Bus: 1, Address: 1}), dev
}

func TestLinkGetDeviceInfoRoundTrip(t *testing.T) {
	p := PhoneProfile()
	dev := p.NewDevice()
	link := NewLink(dev)

	ex := session.New(link, session.DefaultTuning())
	ctx := context.Background()
	if err := ex.OpenUSB(ctx, 0); err != nil {
		t.Fatalf("OpenUSB: %s", err)
	}

	if err := ex.OpenSession(ctx, 1); err != nil {
		t.Fatalf("OpenSession: %s", err)
	}

	var buf []byte
	_, err := ex.Execute(ctx, &session.Request{
		Op: session.OpGetDeviceInfo,
		DataIn: func(chunk []byte) error {
			buf = append(buf, chunk...)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("get-device-info: %s", err)
	}
	info, err := probe.DecodeDeviceInfo(buf)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if info.Model != p.Model || info.Manufacturer != p.Manufacturer {
		t.Fatalf("got %+v", info)
	}
}

func TestLinkGetStorageIDsAndInfo(t *testing.T) {
	p := PhoneProfile()
	dev, _ := newTestFacade(t, p, probe.Ladder{})

	ids, err := dev.GetStorageIDs(context.Background())
	if err != nil {
		t.Fatalf("GetStorageIDs: %s", err)
	}
	if len(ids) != 1 || ids[0] != 0x00010001 {
		t.Fatalf("got %v", ids)
	}

	info, err := dev.GetStorageInfo(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("GetStorageInfo: %s", err)
	}
	if info.ReadOnly() {
		t.Fatal("phone storage should be read-write")
	}
}

// TestWriteThenReadRoundTrip exercises spec.md §8's "write then read"
// scenario end to end: send-object-info + send-object, then read the
// same object back via the partial-64 ladder and assert byte-for-byte
// equality with what was written.
func TestWriteThenReadRoundTrip(t *testing.T) {
	p := PhoneProfile()
	dev, _ := newTestFacade(t, p, probe.Ladder{Read: "partial-64"})

	want := bytes.Repeat([]byte("mtp-round-trip-"), 100)
	handle, err := dev.SendObjectInfo(context.Background(), 0x00010001, session.RootHandle,
		device.ObjectInfo{Filename: "roundtrip.bin", ObjectCompressedSize: uint32(len(want))})
	if err != nil {
		t.Fatalf("SendObjectInfo: %s", err)
	}

	if err := dev.SendObject(context.Background(), bytes.NewReader(want), int64(len(want))); err != nil {
		t.Fatalf("SendObject: %s", err)
	}

	var got []byte
	err = dev.ReadObject(context.Background(), handle, 0, 0, int64(len(want)), func(b []byte) error {
		got = append(got, b...)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("ReadObject: %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

// TestDeleteThenEnumerateDetectsRemoval mirrors spec.md §8's stale-
// mark/re-crawl scenario at the device-façade level: an object
// deleted from the device no longer appears in a fresh enumeration of
// its parent.
func TestDeleteThenEnumerateDetectsRemoval(t *testing.T) {
	p := MediaPlayerProfile()
	facade, dev := newTestFacade(t, p, probe.Ladder{Enumeration: "prop-list-5"})

	h1 := dev.CreateObject(0x00010001, session.RootHandle, "keep.mp3", []byte("a"), false)
	h2 := dev.CreateObject(0x00010001, session.RootHandle, "remove.mp3", []byte("b"), false)

	var before []device.Record
	err := facade.Enumerate(context.Background(), 0x00010001, session.RootHandle, 10, func(batch []device.Record) error {
		before = append(before, batch...)
		return nil
	})
	if err != nil {
		t.Fatalf("Enumerate (before): %s", err)
	}
	if len(before) != 2 {
		t.Fatalf("got %d records before delete, want 2", len(before))
	}

	if err := facade.DeleteObject(context.Background(), h2); err != nil {
		t.Fatalf("DeleteObject: %s", err)
	}

	var after []device.Record
	err = facade.Enumerate(context.Background(), 0x00010001, session.RootHandle, 10, func(batch []device.Record) error {
		after = append(after, batch...)
		return nil
	})
	if err != nil {
		t.Fatalf("Enumerate (after): %s", err)
	}
	if len(after) != 1 || after[0].Handle != h1 {
		t.Fatalf("got %+v after delete", after)
	}
}

func TestSendPartialObjectResume(t *testing.T) {
	p := PhoneProfile()
	dev, _ := newTestFacade(t, p, probe.Ladder{Write: "partial"})

	full := []byte("0123456789")
	handle, err := dev.SendObjectInfo(context.Background(), 0x00010001, session.RootHandle,
		device.ObjectInfo{Filename: "partial.bin", ObjectCompressedSize: uint32(len(full))})
	if err != nil {
		t.Fatalf("SendObjectInfo: %s", err)
	}
	if err := dev.SendObject(context.Background(), bytes.NewReader(full[:5]), 5); err != nil {
		t.Fatalf("SendObject (first half): %s", err)
	}
	if err := dev.ResumeSendObject(context.Background(), handle, bytes.NewReader(full[5:]), 5, int64(len(full))); err != nil {
		t.Fatalf("ResumeSendObject: %s", err)
	}

	var got []byte
	err = dev.ReadObject(context.Background(), handle, 0, 0, int64(len(full)), func(b []byte) error {
		got = append(got, b...)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("ReadObject: %s", err)
	}
	if !bytes.Equal(got, full) {
		t.Fatalf("got %q, want %q", got, full)
	}
}
