package probe

import "testing"

func TestDetectCapabilities(t *testing.T) {
	info := &DeviceInfo{OperationsSupported: []uint16{0x1001, 0x101B, 0x9805}, EventsSupported: []uint16{0x4002}}
	caps := DetectCapabilities(info)

	if !caps.SupportsPartial32 {
		t.Fatal("expected partial-32 support")
	}
	if caps.SupportsPartial64 {
		t.Fatal("did not expect partial-64 support")
	}
	if !caps.SupportsGetObjectPropList {
		t.Fatal("expected get-object-prop-list support")
	}
	if !caps.SupportsEvents {
		t.Fatal("expected events support")
	}
}

func TestSelectLadderPrefersBestVariant(t *testing.T) {
	full := Capabilities{SupportsPartial64: true, SupportsPartial32: true, SupportsSendPartial: true, SupportsGetObjectPropList: true}
	l := SelectLadder(full, true)
	if l.Enumeration != "prop-list-5" || l.Read != "partial-64" || l.Write != "partial" {
		t.Fatalf("got %+v", l)
	}
}

func TestSelectLadderFallsBackWhenNothingSupported(t *testing.T) {
	l := SelectLadder(Capabilities{}, true)
	if l.Enumeration != "handles-then-info" || l.Read != "whole-object" || l.Write != "whole-object" {
		t.Fatalf("got %+v", l)
	}
}

func TestSelectLadderFallsBackToPartial32(t *testing.T) {
	l := SelectLadder(Capabilities{SupportsPartial32: true}, false)
	if l.Read != "partial-32" {
		t.Fatalf("got %+v", l)
	}
	if l.Enumeration != "handles-then-info" {
		t.Fatalf("expected handles-then-info when prefersPropListEnumeration is false, got %+v", l)
	}
}
