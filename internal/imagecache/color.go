package imagecache

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// AccentColor returns the average color of img as #rrggbb.
func AccentColor(img image.Image) string {
	if img == nil || img.Bounds().Empty() {
		return ""
	}
	px := imaging.Resize(img, 1, 1, imaging.Box)
	c := px.NRGBAAt(0, 0)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
