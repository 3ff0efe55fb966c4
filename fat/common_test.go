package fat

import "testing"

func TestDetermineFatKind(t *testing.T) {
	cases := []struct {
		clusters uint32
		wantKind FatKind
		wantOK   bool
	}{
		{4084, 0, false},
		{4085, Fat16, true},
		{65524, Fat16, true},
		{65525, Fat32, true},
	}

	for _, c := range cases {
		kind, ok := DetermineFatKind(c.clusters)
		if ok != c.wantOK {
			t.Fatalf("clusters=%d: ok = %v, want %v", c.clusters, ok, c.wantOK)
		}
		if ok && kind != c.wantKind {
			t.Fatalf("clusters=%d: kind = %v, want %v", c.clusters, kind, c.wantKind)
		}
	}
}

func TestMaskEntryAndEOC(t *testing.T) {
	masked := MaskEntry(Fat32, 0xFFFFFFFF)
	if masked != 0x0FFFFFFF {
		t.Fatalf("masked = 0x%X, want 0x0FFFFFFF", masked)
	}
	if !IsEndOfChain(Fat32, masked) {
		t.Fatalf("expected 0x0FFFFFFF to be classified as end-of-chain")
	}

	if !IsEndOfChain(Fat16, 0xFFF8) {
		t.Fatalf("expected 0xFFF8 to be end-of-chain on FAT16")
	}
	if IsEndOfChain(Fat16, 0xFFF7) {
		t.Fatalf("0xFFF7 is the bad-cluster marker, not end-of-chain")
	}
}
