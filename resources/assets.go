// Package resources renders the tray badge icons.
package resources

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// BadgeSize is the edge length of a rendered badge in pixels.
const BadgeSize = 32

var badgeCache sync.Map

// Badge returns a tray icon showing text on a disc of the given #rrggbb
// color. Rendered icons are cached.
func Badge(text, hexColor string) (fyne.Resource, error) {
	name := fmt.Sprintf("badge-%s-%s.png", strings.TrimPrefix(hexColor, "#"), text)
	if cached, ok := badgeCache.Load(name); ok {
		return cached.(fyne.Resource), nil
	}

	fill, err := ParseHexColor(hexColor)
	if err != nil {
		return nil, fmt.Errorf("render badge %q: %w", text, err)
	}
	data, err := renderBadge(text, fill)
	if err != nil {
		return nil, fmt.Errorf("render badge %q: %w", text, err)
	}

	resource := fyne.NewStaticResource(name, data)
	badgeCache.Store(name, resource)
	return resource, nil
}

// MustBadge returns a badge or panics on error.
func MustBadge(text, hexColor string) fyne.Resource {
	resource, err := Badge(text, hexColor)
	if err != nil {
		panic(err)
	}
	return resource
}

// ParseHexColor parses #rrggbb.
func ParseHexColor(value string) (color.RGBA, error) {
	hex := strings.TrimPrefix(value, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", value)
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", value, err)
	}
	return color.RGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 0xff}, nil
}

func renderBadge(text string, fill color.RGBA) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, BadgeSize, BadgeSize))
	center := float64(BadgeSize-1) / 2
	radius := float64(BadgeSize) / 2
	for y := 0; y < BadgeSize; y++ {
		for x := 0; x < BadgeSize; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			if dx*dx+dy*dy <= radius*radius {
				img.Set(x, y, fill)
			}
		}
	}

	if text != "" {
		face := basicfont.Face7x13
		drawer := &font.Drawer{Dst: img, Src: image.White, Face: face}
		width := drawer.MeasureString(text)
		metrics := face.Metrics()
		baseline := (fixed.I(BadgeSize) + metrics.Ascent - metrics.Descent) / 2
		drawer.Dot = fixed.Point26_6{X: (fixed.I(BadgeSize) - width) / 2, Y: baseline}
		drawer.DrawString(text)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
