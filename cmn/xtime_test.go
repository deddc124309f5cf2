package cmn

import "testing"

func TestXtimeLess(t *testing.T) {
	cases := []struct {
		a, b Xtime
		want bool
	}{
		{Xtime{1, 0}, Xtime{2, 0}, true},
		{Xtime{2, 0}, Xtime{1, 0}, false},
		{Xtime{1, 5}, Xtime{1, 10}, true},
		{Xtime{1, 10}, Xtime{1, 5}, false},
		{Xtime{1, 1}, Xtime{1, 1}, false},
		{URXtime, Xtime{0, 0}, true},
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.want {
			t.Errorf("%v.Less(%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestXtimeMarshalRoundTrip(t *testing.T) {
	xt := Xtime{Sec: 1700000000, NSec: 123456}
	buf := xt.MarshalAttr()
	if len(buf) != 16 {
		t.Fatalf("MarshalAttr length = %d, want 16", len(buf))
	}
	got, err := UnmarshalAttr(buf)
	if err != nil {
		t.Fatalf("UnmarshalAttr: %v", err)
	}
	if got != xt {
		t.Errorf("round trip = %v, want %v", got, xt)
	}
}

func TestUnmarshalAttrBadLength(t *testing.T) {
	if _, err := UnmarshalAttr([]byte{1, 2, 3}); err == nil {
		t.Error("expected an error for a short attribute buffer")
	}
}

func TestStampUsesMicroseconds(t *testing.T) {
	xt := Stamp()
	if xt.NSec >= int64(NSecUnitsPerSec) {
		t.Errorf("Stamp().NSec = %d, want < %d", xt.NSec, NSecUnitsPerSec)
	}
}
