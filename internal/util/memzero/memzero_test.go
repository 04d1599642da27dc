package memzero

import "testing"

func TestZeroClearsAllBuffers(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5}
	Zero(a, nil, b, []byte{})
	for i, v := range append(a, b...) {
		if v != 0 {
			t.Fatalf("byte %d = %d, want 0", i, v)
		}
	}
}

func TestZeroSubslice(t *testing.T) {
	buf := []byte{9, 9, 9, 9}
	Zero(buf[1:3])
	if buf[0] != 9 || buf[1] != 0 || buf[2] != 0 || buf[3] != 9 {
		t.Fatalf("got %v", buf)
	}
}
