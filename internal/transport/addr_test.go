package transport

import "testing"

func equalAddrList(l1, l2 AddrList) bool {
	if len(l1) != len(l2) {
		return false
	}
	for i := range l1 {
		if l1[i] != l2[i] {
			return false
		}
	}
	return true
}

func makeAddrList(addrs ...Addr) AddrList {
	l := AddrList{}
	for _, a := range addrs {
		l.Add(a)
	}
	return l
}

func TestAddrListAddFind(t *testing.T) {
	a1 := Addr{0, 1}
	a2 := Addr{0, 2}
	a3 := Addr{0, 3}

	l1 := makeAddrList(a1, a2)

	if l1.Find(a1) < 0 {
		t.Fatal("a1 not found")
	}
	if l1.Find(a2) < 0 {
		t.Fatal("a2 not found")
	}
	if l1.Find(a3) >= 0 {
		t.Fatal("a3 unexpectedly found")
	}
}

func TestAddrListStaysSorted(t *testing.T) {
	l := makeAddrList(Addr{0, 3}, Addr{0, 1}, Addr{0, 2})
	want := makeAddrList(Addr{0, 1}, Addr{0, 2}, Addr{0, 3})
	if !equalAddrList(l, want) {
		t.Fatalf("got %+v want %+v", l, want)
	}
}

func TestAddrListAddDuplicate(t *testing.T) {
	l := makeAddrList(Addr{0, 1}, Addr{0, 1})
	if len(l) != 1 {
		t.Fatalf("expected duplicate to collapse, got %+v", l)
	}
}

func TestAddrListDiff(t *testing.T) {
	l1 := makeAddrList(Addr{0, 1}, Addr{0, 2})
	l2 := makeAddrList(Addr{0, 2}, Addr{0, 3})

	added, removed := l1.Diff(l2)

	if !equalAddrList(added, makeAddrList(Addr{0, 3})) {
		t.Fatalf("added: got %+v", added)
	}
	if !equalAddrList(removed, makeAddrList(Addr{0, 1})) {
		t.Fatalf("removed: got %+v", removed)
	}
}

func TestIfDescIsMTP(t *testing.T) {
	cases := []struct {
		d    IfDesc
		want bool
	}{
		{IfDesc{Class: 6, SubClass: 1, Proto: 1}, true},
		{IfDesc{Class: 255, SubClass: 255, Proto: 0}, true},
		{IfDesc{Class: 8, SubClass: 6, Proto: 80}, false},
	}

	for _, c := range cases {
		if got := c.d.IsMTP(); got != c.want {
			t.Errorf("%+v: got %v want %v", c.d, got, c.want)
		}
	}
}
