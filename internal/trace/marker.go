package trace

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

var (
	markerColor  = color.RGBA{66, 133, 244, 255}
	failureColor = color.RGBA{219, 68, 55, 255}
)

const markerRadius = 15

// Mark returns a copy of frame with a ring and cross-hair centred on the
// element the step acted on. failed switches to the failure colour.
func Mark(frame image.Image, x, y int, failed bool) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	c := markerColor
	if failed {
		c = failureColor
	}
	drawRing(out, x, y, markerRadius, c)
	drawLine(out, x-markerRadius/2, y, x+markerRadius/2, y, c)
	drawLine(out, x, y-markerRadius/2, x, y+markerRadius/2, c)
	return out
}

func drawRing(img *image.RGBA, x, y, radius int, c color.RGBA) {
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		px := x + int(float64(radius)*math.Cos(rad))
		py := y + int(float64(radius)*math.Sin(rad))
		setPixelSafe(img, px, py, c)
		setPixelSafe(img, px+1, py, c)
		setPixelSafe(img, px, py+1, c)
	}
}

// drawLine uses Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
