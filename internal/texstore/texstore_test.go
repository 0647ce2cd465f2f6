package texstore

import "testing"

func TestAllocatorPacksWithoutOverlap(t *testing.T) {
	a := NewAllocator()
	allocs := make([]Allocation, 0, 20)
	for i := 0; i < 20; i++ {
		allocs = append(allocs, a.Alloc(FormatRGBA8, 64, 64))
	}
	seen := map[[3]int]bool{}
	for _, al := range allocs {
		key := [3]int{al.Page, al.X, al.Y}
		if seen[key] {
			t.Fatalf("duplicate allocation slot: %v", key)
		}
		seen[key] = true
	}
}

func TestAllocatorAddsNewPageWhenFull(t *testing.T) {
	a := NewAllocator()
	var maxPage int
	for i := 0; i < 2000; i++ {
		al := a.Alloc(FormatRGBA8, 128, 128)
		if al.Page > maxPage {
			maxPage = al.Page
		}
	}
	if maxPage == 0 {
		t.Fatalf("expected allocator to overflow into a second page")
	}
}

func TestSelectAtlasFormatNormalMap(t *testing.T) {
	if f := SelectAtlasFormat(FormatRGBA8, true, false); f != FormatRG8 {
		t.Fatalf("expected uncompressed normal maps to select RG8, got %v", f)
	}
	if f := SelectAtlasFormat(FormatRGBA8, true, true); f != FormatBC5 {
		t.Fatalf("expected compressed normal maps to select BC5, got %v", f)
	}
	if f := SelectAtlasFormat(FormatRGBA8, false, true); f != FormatBC3 {
		t.Fatalf("expected compressed RGBA to select BC3, got %v", f)
	}
}

func TestRepackNormalMapSetsReconstructZBelowThreshold(t *testing.T) {
	rgb := []byte{128, 128, 10} // B below threshold
	_, reconstructZ := RepackNormalMap(rgb, 1, 1)
	if !reconstructZ {
		t.Fatalf("expected reconstruct-Z to be set when B channel is below threshold")
	}

	rgbHigh := []byte{128, 128, 255}
	_, reconstructZ2 := RepackNormalMap(rgbHigh, 1, 1)
	if reconstructZ2 {
		t.Fatalf("expected reconstruct-Z to be clear when B channel is above threshold")
	}
}

func TestBuildMipsHalvesEachLevel(t *testing.T) {
	rgba := make([]byte, 8*8*4)
	for i := range rgba {
		rgba[i] = 200
	}
	mips := BuildMips(rgba, 8, 8)
	if len(mips) != 4 { // 8->4->2->1
		t.Fatalf("expected 4 mip levels for an 8x8 source, got %d", len(mips))
	}
	if len(mips[len(mips)-1]) != 4 {
		t.Fatalf("expected the last mip to be 1x1 RGBA (4 bytes), got %d", len(mips[len(mips)-1]))
	}
}

func TestBindlessRoundTrip(t *testing.T) {
	tbl := NewBindlessTable()
	h := tbl.Register(Allocation{Atlas: FormatRGBA8}, FlagSRGB|FlagReconstructZ)
	idx, flags := DecodeBindless(uint32(h.Index()))
	if idx != 0 {
		t.Fatalf("expected first registration to get index 0, got %d", idx)
	}
	if flags&FlagSRGB == 0 || flags&FlagReconstructZ == 0 {
		t.Fatalf("expected both flags to round-trip, got %b", flags)
	}
}

func TestEncodeBC4BlockProducesEightBytes(t *testing.T) {
	var block [16]byte
	for i := range block {
		block[i] = byte(i * 16)
	}
	out := EncodeBC4Block(block)
	if out[0] == 0 && out[1] == 0 {
		t.Fatalf("expected non-trivial endpoints for a gradient block")
	}
}

func TestEncodeBC3BlockRoundTripsEndpoints(t *testing.T) {
	var block [16][4]byte
	for i := range block {
		block[i] = [4]byte{byte(i * 16), byte(255 - i*16), 128, byte(i * 16)}
	}
	out := EncodeBC3Block(block)
	if len(out) != 16 {
		t.Fatalf("expected a 16-byte BC3 block")
	}
	if out[0] != 240 || out[1] != 0 {
		t.Fatalf("alpha endpoints = %d,%d, want 240,0", out[0], out[1])
	}
	if c0 := uint16(out[8]) | uint16(out[9])<<8; c0 != pack565(240, 255, 128) {
		t.Fatalf("color endpoint 0 = %#04x, want %#04x", c0, pack565(240, 255, 128))
	}
	if c1 := uint16(out[10]) | uint16(out[11])<<8; c1 != pack565(0, 15, 128) {
		t.Fatalf("color endpoint 1 = %#04x, want %#04x", c1, pack565(0, 15, 128))
	}
}
