package probe

import (
	"testing"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
)

func TestRankInterfaceScores(t *testing.T) {
	cases := []struct {
		ifd  transport.IfDesc
		want int
	}{
		{transport.IfDesc{Class: 0x06, SubClass: 0x01, Proto: 0x01}, scorePTPStillImage},
		{transport.IfDesc{Class: 0xFF, SubClass: 0xFF, Proto: 0x00}, scoreVendorMTP},
		{transport.IfDesc{Class: 0x08}, scoreMassStorage},
		{transport.IfDesc{Class: 0x03}, 0},
	}
	for _, c := range cases {
		if got := RankInterface(c.ifd); got != c.want {
			t.Fatalf("RankInterface(%+v) = %d, want %d", c.ifd, got, c.want)
		}
	}
}

func TestSelectInterfacePrefersHighestScore(t *testing.T) {
	desc := transport.DeviceDesc{
		IfDescs: []transport.IfDesc{
			{IfNum: 0, Class: 0x08},
			{IfNum: 1, Class: 0x06, SubClass: 0x01, Proto: 0x01},
			{IfNum: 2, Class: 0xFF},
		},
	}

	best, attempts, err := SelectInterface(desc)
	if err != nil {
		t.Fatalf("SelectInterface: %s", err)
	}
	if best.IfNum != 2 {
		t.Fatalf("expected vendor-MTP interface (score 12) to win, got ifnum %d", best.IfNum)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts logged, got %d", len(attempts))
	}
}

func TestSelectInterfaceNoneUsable(t *testing.T) {
	desc := transport.DeviceDesc{IfDescs: []transport.IfDesc{{Class: 0x08}, {Class: 0x03}}}
	_, _, err := SelectInterface(desc)
	if err == nil {
		t.Fatal("expected error when no interface scores above zero")
	}
}
