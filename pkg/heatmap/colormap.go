package heatmap

import (
	"fmt"
	"math"
)

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// luminance is the WCAG relative luminance of c.
func (c RGB) luminance() float64 {
	lin := func(v uint8) float64 {
		s := float64(v) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// TextColor returns a dark or light annotation color readable on c.
func (c RGB) TextColor() string {
	if c.luminance() > 0.408 {
		return "#262626"
	}
	return "#ffffff"
}

// Colormap maps [0,1] onto evenly spaced color stops.
type Colormap []RGB

// Named colormaps.
var (
	Rocket = Colormap{
		{0x03, 0x05, 0x1a}, {0x35, 0x19, 0x3f}, {0x70, 0x1f, 0x57},
		{0xad, 0x17, 0x59}, {0xe1, 0x33, 0x42}, {0xf3, 0x76, 0x51},
		{0xf6, 0xb4, 0x8f}, {0xfa, 0xeb, 0xdd},
	}
	Viridis = Colormap{
		{0x44, 0x01, 0x54}, {0x3b, 0x52, 0x8b}, {0x21, 0x91, 0x8c},
		{0x5e, 0xc9, 0x62}, {0xfd, 0xe7, 0x25},
	}
	Blues = Colormap{
		{0xf7, 0xfb, 0xff}, {0xc6, 0xdb, 0xef}, {0x6b, 0xae, 0xd6},
		{0x21, 0x71, 0xb5}, {0x08, 0x30, 0x6b},
	}
)

// ColormapByName returns the named colormap, falling back to Rocket.
func ColormapByName(name string) Colormap {
	switch name {
	case "viridis":
		return Viridis
	case "blues":
		return Blues
	default:
		return Rocket
	}
}

// At returns the interpolated color at t, clamped to [0,1].
func (cm Colormap) At(t float64) RGB {
	if len(cm) == 0 {
		return RGB{}
	}
	if math.IsNaN(t) || t <= 0 {
		return cm[0]
	}
	if t >= 1 {
		return cm[len(cm)-1]
	}
	pos := t * float64(len(cm)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := cm[i], cm[i+1]
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*frac))
	}
	return RGB{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B)}
}
