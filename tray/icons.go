package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

const iconSize = 44

var (
	iconIdle []byte
	iconRec  []byte
	iconWarn []byte
)

var (
	colorIdle  = color.RGBA{R: 142, G: 142, B: 147, A: 255}
	colorLive  = color.RGBA{R: 52, G: 199, B: 89, A: 255}
	colorAlert = color.RGBA{R: 255, G: 159, B: 10, A: 255}
)

func init() {
	iconIdle = encodePNG(drawEye(iconSize, colorIdle, 0))
	iconRec = encodePNG(drawEye(iconSize, colorLive, 0.22))
	iconWarn = encodePNG(drawEye(iconSize, colorAlert, 0.22))
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}

// drawEye renders a ring in c with an optional pupil whose radius is
// pupil times the icon size. Idle icons have no pupil.
func drawEye(size int, c color.RGBA, pupil float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	s := float64(size)
	center := s / 2
	outer := center - 1
	inner := outer - s*0.12
	pupilR := s * pupil

	for y := range size {
		for x := range size {
			d := math.Hypot(float64(x)+0.5-center, float64(y)+0.5-center)
			switch {
			case d <= pupilR:
				img.Set(x, y, c)
			case d <= inner:
				// transparent iris gap
			case d <= outer:
				img.Set(x, y, c)
			}
		}
	}
	return img
}
