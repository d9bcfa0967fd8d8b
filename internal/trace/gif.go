package trace

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"sort"

	"github.com/nfnt/resize"
)

// EncodeGIF writes frames to path as a looping GIF, each frame shown for
// 1/fps seconds. Frames wider than maxWidth are scaled down; 0 keeps the
// original size. It returns the size of the written file.
func EncodeGIF(frames []image.Image, path string, fps int, maxWidth uint) (int64, error) {
	if len(frames) == 0 {
		return 0, fmt.Errorf("no frames to encode")
	}
	if fps <= 0 {
		fps = 1
	}
	delay := 100 / fps

	bounds := frames[0].Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())
	if maxWidth > 0 && width > maxWidth {
		height = uint(float64(maxWidth) * float64(bounds.Dy()) / float64(bounds.Dx()))
		width = maxWidth
	}

	g := &gif.GIF{
		Image: make([]*image.Paletted, len(frames)),
		Delay: make([]int, len(frames)),
	}
	palette := buildPalette(frames[0])
	for i, frame := range frames {
		scaled := frame
		if uint(frame.Bounds().Dx()) != width || uint(frame.Bounds().Dy()) != height {
			scaled = resize.Resize(width, height, frame, resize.Lanczos3)
		}
		r := scaled.Bounds()
		paletted := image.NewPaletted(image.Rect(0, 0, r.Dx(), r.Dy()), palette)
		draw.FloydSteinberg.Draw(paletted, paletted.Bounds(), scaled, r.Min)
		g.Image[i] = paletted
		g.Delay[i] = delay
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := gif.EncodeAll(f, g); err != nil {
		return 0, fmt.Errorf("failed to encode gif: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// buildPalette picks the 255 most frequent colours of a sampled frame plus
// the marker colours, padded with greys.
func buildPalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)
	const step = 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, _ := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}]++
		}
	}

	type colorCount struct {
		c     color.RGBA
		count int
	}
	sorted := make([]colorCount, 0, len(counts))
	for c, n := range counts {
		sorted = append(sorted, colorCount{c, n})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		a, b := sorted[i].c, sorted[j].c
		return uint32(a.R)<<16|uint32(a.G)<<8|uint32(a.B) < uint32(b.R)<<16|uint32(b.G)<<8|uint32(b.B)
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, markerColor, failureColor)
	for _, cc := range sorted {
		if len(palette) == 256 {
			break
		}
		palette = append(palette, cc.c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}
