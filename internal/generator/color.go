package generator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const DefaultPrimaryColor = "#0077CC"

var ErrInvalidColor = errors.New("invalid hex color")

// HSL is a color in the space-separated form the stylesheet's custom
// properties use, e.g. "205 100% 40%".
type HSL struct {
	H, S, L int
}

func (c HSL) String() string {
	return fmt.Sprintf("%d %d%% %d%%", c.H, c.S, c.L)
}

// Darken lowers lightness by points, never below floor.
func (c HSL) Darken(points, floor int) HSL {
	l := c.L - points
	if l < floor {
		l = floor
	}
	return HSL{H: c.H, S: c.S, L: l}
}

// HexToHSL converts "#RRGGBB" or "#RGB" to HSL with whole-number components.
// Components round half to even.
func HexToHSL(hex string) (HSL, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return HSL{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	rgb, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return HSL{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	r := float64((rgb>>16)&0xff) / 255
	g := float64((rgb>>8)&0xff) / 255
	b := float64(rgb&0xff) / 255

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC
	l := (maxC + minC) / 2

	var hue, sat float64
	if diff != 0 {
		if l > 0.5 {
			sat = diff / (2 - maxC - minC)
		} else {
			sat = diff / (maxC + minC)
		}
		switch maxC {
		case r:
			hue = (g - b) / diff
			if g < b {
				hue += 6
			}
		case g:
			hue = (b-r)/diff + 2
		default:
			hue = (r-g)/diff + 4
		}
		hue /= 6
	}

	return HSL{
		H: int(math.RoundToEven(hue * 360)),
		S: int(math.RoundToEven(sat * 100)),
		L: int(math.RoundToEven(l * 100)),
	}, nil
}

const (
	accentProperty     = "--color-accent: 215 85% 45%;"
	accentDarkProperty = "--color-accent-dark: 215 85% 35%;"
)

// applyAccent rewrites the stylesheet's accent custom properties from a hex
// color. An invalid color leaves the stylesheet untouched.
func applyAccent(css, hex string) string {
	accent, err := HexToHSL(hex)
	if err != nil {
		return css
	}
	css = strings.Replace(css, accentProperty, "--color-accent: "+accent.String()+";", 1)
	css = strings.Replace(css, accentDarkProperty, "--color-accent-dark: "+accent.Darken(10, 20).String()+";", 1)
	return css
}
