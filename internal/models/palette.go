package models

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DefaultPalette lists the selectable note colors as #AARRGGBB strings.
var DefaultPalette = []string{
	"#FF81DEEA", // baby blue
	"#FFE7ED9B", // light green
	"#FFCCC2DC", // purple grey
	"#FFEFB8C8", // pink
	"#FFFFD1DC", // light pink
	"#FFFFF9C4", // light yellow
	"#FFE1BEE7", // light purple
	"#FFFFE0B2", // light orange
	"#FFBBDEFB", // light blue
	"#FFB2EBF2", // light cyan
}

// Palette is the ordered set of colors offered to users.
type Palette []int64

// ParseColor parses "#AARRGGBB" or "#RRGGBB" (alpha defaults to FF).
func ParseColor(s string) (int64, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if err := validation.Validate(hex,
		validation.Required,
		is.Hexadecimal,
		validation.By(func(v interface{}) error {
			if l := len(v.(string)); l != 6 && l != 8 {
				return fmt.Errorf("must have 6 or 8 hex digits")
			}
			return nil
		}),
	); err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	if len(hex) == 6 {
		hex = "FF" + hex
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	return int64(v), nil
}

// FormatColor renders a packed ARGB value as "#AARRGGBB".
func FormatColor(c int64) string {
	return fmt.Sprintf("#%08X", uint32(c))
}

// ParsePalette parses every entry of hexes.
func ParsePalette(hexes []string) (Palette, error) {
	out := make(Palette, 0, len(hexes))
	for _, h := range hexes {
		c, err := ParseColor(h)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Random returns a random palette color, or opaque white for an empty palette.
func (p Palette) Random() int64 {
	if len(p) == 0 {
		return 0xFFFFFFFF
	}
	return p[rand.IntN(len(p))]
}

// Contains reports whether c is one of the palette colors.
func (p Palette) Contains(c int64) bool {
	for _, v := range p {
		if v == c {
			return true
		}
	}
	return false
}

// Hex returns the palette as "#AARRGGBB" strings.
func (p Palette) Hex() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = FormatColor(c)
	}
	return out
}
