package stream

import (
	"fmt"
	"math"
)

// 16-bit tag codes from the IDN-Stream graphic-projector dictionary. A
// precision tag extends the preceding field by another 8 bits.
const (
	tagX         uint16 = 0x4200
	tagY         uint16 = 0x4210
	tagRed       uint16 = 0x527E // 638 nm
	tagGreen     uint16 = 0x5214 // 532 nm
	tagBlue      uint16 = 0x51CC // 460 nm
	tagPrecision uint16 = 0x4010
	tagNop       uint16 = 0x0000
)

// BitDepthProfile selects the wire precision of position and color fields
// independently. Only 8 and 16 bit depths are valid.
type BitDepthProfile struct {
	PositionBits int
	ColorBits    int
}

// The four supported presets.
var (
	ProfileDefault       = BitDepthProfile{PositionBits: 16, ColorBits: 8}
	ProfileHighPrecision = BitDepthProfile{PositionBits: 16, ColorBits: 16}
	ProfileCompact       = BitDepthProfile{PositionBits: 8, ColorBits: 8}
	ProfileHighColor     = BitDepthProfile{PositionBits: 8, ColorBits: 16}
)

// ProfileByName maps a config preset name to its profile.
func ProfileByName(name string) (BitDepthProfile, error) {
	switch name {
	case "", "default":
		return ProfileDefault, nil
	case "high-precision":
		return ProfileHighPrecision, nil
	case "compact":
		return ProfileCompact, nil
	case "high-color":
		return ProfileHighColor, nil
	}
	return BitDepthProfile{}, fmt.Errorf("unknown bit-depth preset %q", name)
}

// Valid reports whether both depths are supported.
func (p BitDepthProfile) Valid() bool {
	return (p.PositionBits == 8 || p.PositionBits == 16) &&
		(p.ColorBits == 8 || p.ColorBits == 16)
}

// BytesPerPoint is the wire width of one sample: two position fields plus
// three color fields at the selected depths (5, 7, 8 or 10 bytes).
func (p BitDepthProfile) BytesPerPoint() int {
	return 2*(p.PositionBits/8) + 3*(p.ColorBits/8)
}

// Tags returns the fixed tag list describing the point layout: position
// words first, then color words, each 16-bit field written as its base tag
// followed by a precision tag. The list is padded with a NOP tag to an even
// count so the config block stays 32-bit aligned.
func (p BitDepthProfile) Tags() []uint16 {
	tags := make([]uint16, 0, 10)
	for _, base := range []uint16{tagX, tagY} {
		tags = append(tags, base)
		if p.PositionBits == 16 {
			tags = append(tags, tagPrecision)
		}
	}
	for _, base := range []uint16{tagRed, tagGreen, tagBlue} {
		tags = append(tags, base)
		if p.ColorBits == 16 {
			tags = append(tags, tagPrecision)
		}
	}
	if len(tags)%2 != 0 {
		tags = append(tags, tagNop)
	}
	return tags
}

// ProfileFromTags reconstructs a profile from a decoded tag list, for
// packet inspection. Returns false when the list is not one of the four
// layouts this codec emits.
func ProfileFromTags(tags []uint16) (BitDepthProfile, bool) {
	for _, p := range []BitDepthProfile{
		ProfileDefault, ProfileHighPrecision, ProfileCompact, ProfileHighColor,
	} {
		want := p.Tags()
		if len(want) != len(tags) {
			continue
		}
		match := true
		for i := range want {
			if want[i] != tags[i] {
				match = false
				break
			}
		}
		if match {
			return p, true
		}
	}
	return BitDepthProfile{}, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Position16 converts a normalized coordinate to a signed 16-bit wire value.
func Position16(v float64) int16 {
	return int16(math.Round(clamp(v, -1, 1) * 32767))
}

// Position8 converts a normalized coordinate to an unsigned 8-bit wire
// value. Zero maps to 128, not 127: the range is shifted by half a step so
// both extremes stay exactly representable.
func Position8(v float64) uint8 {
	return uint8(math.Round((clamp(v, -1, 1) + 1) * 127.5))
}

// Color16 converts a normalized color component to 16 bits.
func Color16(v float64) uint16 {
	return uint16(math.Round(clamp(v, 0, 1) * 65535))
}

// Color8 converts a normalized color component to 8 bits.
func Color8(v float64) uint8 {
	return uint8(math.Round(clamp(v, 0, 1) * 255))
}
