package can

import (
	"errors"
	"testing"
)

func TestFrameValidate(t *testing.T) {
	tests := []struct {
		name string
		f    Frame
		want error
	}{
		{"std max", Frame{ID: 0x7FF}, nil},
		{"std overflow", Frame{ID: 0x800}, ErrInvalidID},
		{"ext max", Frame{ID: 0x1FFFFFFF, Extended: true}, nil},
		{"ext overflow", Frame{ID: 0x20000000, Extended: true}, ErrInvalidID},
		{"len 8", Frame{ID: 1, Len: 8}, nil},
		{"len 9", Frame{ID: 1, Len: 9}, ErrInvalidLen},
	}
	for _, tc := range tests {
		if got := tc.f.Validate(); got != tc.want {
			t.Fatalf("%s: Validate()=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestRawIDRoundTrip(t *testing.T) {
	for _, f := range []Frame{
		{ID: 0x135},
		{ID: 0x50, RTR: true},
		{ID: 0x1ABCDEFF, Extended: true},
		{ID: 0x800, Extended: true, RTR: true},
	} {
		g := FromRawID(f.RawID())
		if g.ID != f.ID || g.Extended != f.Extended || g.RTR != f.RTR {
			t.Fatalf("raw id mismatch: got %+v want %+v", g, f)
		}
	}
}

func TestFrameString(t *testing.T) {
	f := Frame{ID: 0x135, Len: 2, Data: [8]byte{0xDE, 0xAD}}
	if got := f.String(); got != "135 [2] DE AD" {
		t.Fatalf("String()=%q", got)
	}
	r := Frame{ID: 0x1ABCDEFF, Extended: true, RTR: true}
	if got := r.String(); got != "1ABCDEFF [0] RTR" {
		t.Fatalf("String()=%q", got)
	}
}

func TestFromRawIDKeepsWideStandardID(t *testing.T) {
	f := FromRawID(0x00000850)
	if f.Extended || f.ID != 0x850 {
		t.Fatalf("standard id must not be masked to 11 bits, got %+v", f)
	}
	if err := f.Validate(); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}
