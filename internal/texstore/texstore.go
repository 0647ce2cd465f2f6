// Package texstore implements the packed-atlas allocator, bindless
// texture table, mip generation and reference block-compression used to
// get texture data in front of the shader.
//
// Textures are packed into fixed-size atlas pages per format and referenced
// by a bindless handle table rather than individual bound texture units, so
// a material's texture references can be uploaded once as plain integers.
// The image decode/repack step (RGB->RGBA expansion via a small Decoder
// abstraction) wraps an underlying image library behind a narrow interface
// the way asset pipelines typically isolate their decoder dependency. The
// default build decodes PNG via the standard library and HDR/RGBE via a
// hand-rolled reader (internal/texstore/rgbe.go); a cgo_openimageio build
// tag could swap in a real OpenImageIO binding without touching call sites.
package texstore

import "github.com/prism-renderer/prism/internal/handle"

// Format is one of the seven atlas pixel formats the allocator packs
// into.
type Format uint32

const (
	FormatRGBA8 Format = iota
	FormatRGB8
	FormatRG8
	FormatR8
	FormatBC3
	FormatBC4
	FormatBC5
	numFormats
)

const (
	pageSize = 2048

	// bindless handle bit layout: (table_index << 8) | flags.
	FlagSRGB        uint32 = 1 << 0
	FlagReconstructZ uint32 = 1 << 1
	FlagYCoCg       uint32 = 1 << 2

	// normal-map reconstruct-Z threshold on the source B channel.
	reconstructZThreshold = 250
)

// Allocation is the result of packing one texture into an atlas.
type Allocation struct {
	Atlas  Format
	Page   int
	X, Y   int
	Width  int
	Height int
	// PackedWidth/PackedHeight steal high bits for SRGB/RECONSTRUCT_Z
	// (width) and MIPS_PRESENT (height).
	PackedWidth  uint32
	PackedHeight uint32
}

const (
	widthSRGBBit        uint32 = 1 << 31
	widthReconstructZBit uint32 = 1 << 30
	heightMipsPresentBit uint32 = 1 << 31
)

func packWidth(w int, srgb, reconstructZ bool) uint32 {
	v := uint32(w)
	if srgb {
		v |= widthSRGBBit
	}
	if reconstructZ {
		v |= widthReconstructZBit
	}
	return v
}

func packHeight(h int, mipsPresent bool) uint32 {
	v := uint32(h)
	if mipsPresent {
		v |= heightMipsPresentBit
	}
	return v
}

type page struct {
	// skyline bin-pack: one "current height" entry per column of a fixed
	// horizontal resolution, the classic skyline heuristic.
	skyline []int
}

func newPage() *page {
	return &page{skyline: make([]int, pageSize)}
}

// fit finds the best (lowest, then leftmost) x position for a rectangle
// of the given width using the skyline heuristic, or returns ok=false if
// it does not fit in the page's fixed height.
func (p *page) fit(w, h int) (x, y int, ok bool) {
	bestY := pageSize + 1
	bestX := -1
	for start := 0; start+w <= pageSize; start++ {
		maxH := 0
		for i := start; i < start+w; i++ {
			if p.skyline[i] > maxH {
				maxH = p.skyline[i]
			}
		}
		if maxH+h > pageSize {
			continue
		}
		if maxH < bestY {
			bestY = maxH
			bestX = start
		}
	}
	if bestX < 0 {
		return 0, 0, false
	}
	for i := bestX; i < bestX+w; i++ {
		p.skyline[i] = bestY + h
	}
	return bestX, bestY, true
}

// Atlas is one of the seven format-keyed 2-D page arrays.
type Atlas struct {
	Format Format
	pages  []*page
}

// Allocator owns all seven format atlases.
type Allocator struct {
	atlases [numFormats]*Atlas
}

func NewAllocator() *Allocator {
	a := &Allocator{}
	for f := Format(0); f < numFormats; f++ {
		a.atlases[f] = &Atlas{Format: f}
	}
	return a
}

// Alloc reserves a w x h rectangle in the given format's atlas, appending
// a new page when no existing page has room.
func (a *Allocator) Alloc(format Format, w, h int) Allocation {
	atlas := a.atlases[format]
	for pageIdx, pg := range atlas.pages {
		if x, y, ok := pg.fit(w, h); ok {
			return Allocation{Atlas: format, Page: pageIdx, X: x, Y: y, Width: w, Height: h}
		}
	}
	pg := newPage()
	atlas.pages = append(atlas.pages, pg)
	x, y, _ := pg.fit(w, h)
	return Allocation{Atlas: format, Page: len(atlas.pages) - 1, X: x, Y: y, Width: w, Height: h}
}

// SelectAtlasFormat maps a source format plus normal-map/compression
// flags to the atlas storage format it should be packed into.
func SelectAtlasFormat(base Format, isNormalMap, useCompression bool) Format {
	if isNormalMap {
		if useCompression {
			return FormatBC5
		}
		return FormatRG8
	}
	if useCompression {
		switch base {
		case FormatRGBA8, FormatRGB8:
			return FormatBC3
		case FormatR8:
			return FormatBC4
		}
	}
	return base
}

// RepackNormalMap converts an RGB(A) normal-map source into RG8, deriving
// the reconstruct-Z bit from whether any source pixel's B channel falls
// below the threshold.
func RepackNormalMap(rgb []byte, width, height int) (rg []byte, reconstructZ bool) {
	rg = make([]byte, width*height*2)
	for i := 0; i < width*height; i++ {
		r, g, b := rgb[i*3], rgb[i*3+1], rgb[i*3+2]
		rg[i*2] = r
		rg[i*2+1] = g
		if b < reconstructZThreshold {
			reconstructZ = true
		}
	}
	return rg, reconstructZ
}

// BuildMips generates a full mip chain via a 2x2 box filter with
// clamp-to-edge, for an RGBA8 source.
func BuildMips(rgba []byte, width, height int) [][]byte {
	levels := [][]byte{rgba}
	w, h := width, height
	src := rgba
	for w > 1 || h > 1 {
		nw, nh := max1(w/2), max1(h/2)
		dst := make([]byte, nw*nh*4)
		for y := 0; y < nh; y++ {
			for x := 0; x < nw; x++ {
				sx0, sy0 := clamp(x*2, w-1), clamp(y*2, h-1)
				sx1, sy1 := clamp(x*2+1, w-1), clamp(y*2+1, h-1)
				for c := 0; c < 4; c++ {
					sum := int(src[(sy0*w+sx0)*4+c]) + int(src[(sy0*w+sx1)*4+c]) +
						int(src[(sy1*w+sx0)*4+c]) + int(src[(sy1*w+sx1)*4+c])
					dst[(y*nw+x)*4+c] = byte(sum / 4)
				}
			}
		}
		levels = append(levels, dst)
		src, w, h = dst, nw, nh
	}
	return levels
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func clamp(v, max int) int {
	if v > max {
		return max
	}
	return v
}

// RGBToYCoCg converts an RGBA8 buffer to the YCoCg layout used before BC3
// compression: Y in alpha, chroma in RG. The shader undoes this transform
// when the YCOCG flag is set on the bindless handle.
func RGBToYCoCg(rgba []byte) []byte {
	out := make([]byte, len(rgba))
	for i := 0; i < len(rgba); i += 4 {
		r, g, b := float64(rgba[i]), float64(rgba[i+1]), float64(rgba[i+2])
		y := 0.25*r + 0.5*g + 0.25*b
		co := 0.5*r - 0.5*b + 127.5
		cg := -0.25*r + 0.5*g - 0.25*b + 127.5
		out[i] = byte(clampF(co))
		out[i+1] = byte(clampF(cg))
		out[i+2] = 0
		out[i+3] = byte(clampF(y))
	}
	return out
}

func clampF(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// BindlessTable is a sparse array of texture objects addressed by a
// 32-bit handle packing (table_index << 8) | flags.
type BindlessTable struct {
	entries []Allocation
	flags   []uint32
}

func NewBindlessTable() *BindlessTable { return &BindlessTable{} }

func (b *BindlessTable) Register(alloc Allocation, flags uint32) handle.TextureHandle {
	idx := uint32(len(b.entries))
	b.entries = append(b.entries, alloc)
	b.flags = append(b.flags, flags)
	return handle.TextureHandle(handle.New((idx<<8)|flags, 0))
}

// DecodeBindless splits a bindless handle back into its table index and flags.
func DecodeBindless(raw uint32) (index uint32, flags uint32) {
	return raw >> 8, raw & 0xFF
}
