package captcha

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const fallbackScale = 3

func fill(img *image.RGBA, c color.Color) {
	xdraw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
}

func (g *Generator) drawNoise(img *image.RGBA) {
	w, h := g.cfg.Width, g.cfg.Height
	for i := 0; i < noiseLines; i++ {
		line(img, g.between(0, w), g.between(0, h), g.between(0, w), g.between(0, h), g.shade(100, 200))
	}
	for i := 0; i < noisePoints; i++ {
		img.Set(g.between(0, w-1), g.between(0, h-1), g.shade(150, 220))
	}
}

func (g *Generator) drawText(img *image.RGBA, text string) {
	d := &font.Drawer{Dst: img, Face: g.face}

	width := d.MeasureString(text).Round()
	step := width / len(text)
	x := (g.cfg.Width - width) / 2
	top := (g.cfg.Height - fontSize) / 2
	ascent := g.face.Metrics().Ascent.Round()

	for i, ch := range text {
		d.Src = image.NewUniform(g.shade(0, 100))
		d.Dot = fixed.P(
			x+i*step+g.between(-jitterX, jitterX),
			top+ascent+g.between(-jitterY, jitterY),
		)
		d.DrawString(string(ch))
	}
}

// drawFallbackText renders with the built-in 7x13 bitmap face and upscales it.
func (g *Generator) drawFallbackText(img *image.RGBA, text string) {
	small := image.NewRGBA(image.Rect(0, 0, g.cfg.Width/fallbackScale, g.cfg.Height/fallbackScale))
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: small, Face: face}

	width := d.MeasureString(text).Round()
	step := width / len(text)
	x := (small.Bounds().Dx() - width) / 2
	y := (small.Bounds().Dy()+face.Ascent)/2 - 1

	for i, ch := range text {
		d.Src = image.NewUniform(g.shade(0, 100))
		d.Dot = fixed.P(x+i*step+g.between(-1, 1), y+g.between(-1, 1))
		d.DrawString(string(ch))
	}

	xdraw.NearestNeighbor.Scale(img, img.Bounds(), small, small.Bounds(), xdraw.Over, nil)
}

// line draws a 1px segment with Bresenham's algorithm.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
