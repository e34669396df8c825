package chart

import (
	"image"
	"image/color"
	"math"
)

// canvas is an RGBA raster with clipped drawing helpers.
type canvas struct {
	*image.RGBA
}

func newCanvas(w, h int, bg color.RGBA) canvas {
	c := canvas{image.NewRGBA(image.Rect(0, 0, w, h))}
	c.fill(c.Bounds(), bg)
	return c
}

func (c canvas) fill(r image.Rectangle, col color.RGBA) {
	r = r.Intersect(c.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c.SetRGBA(x, y, col)
		}
	}
}

// dot fills a square of side 2*radius+1 centred on p.
func (c canvas) dot(p image.Point, radius int, col color.RGBA) {
	c.fill(image.Rect(p.X-radius, p.Y-radius, p.X+radius+1, p.Y+radius+1), col)
}

// line draws a one pixel segment with Bresenham's algorithm.
func (c canvas) line(a, b image.Point, col color.RGBA) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	diff := dx + dy
	for p := a; ; {
		if p.In(c.Bounds()) {
			c.SetRGBA(p.X, p.Y, col)
		}
		if p == b {
			return
		}
		e2 := 2 * diff
		if e2 >= dy {
			diff += dy
			p.X += sx
		}
		if e2 <= dx {
			diff += dx
			p.Y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// panel maps a value range onto a rectangle of the canvas.
type panel struct {
	canvas
	rect     image.Rectangle
	lo, hi   float64
	numPoint int
}

func (p panel) x(i int) int {
	if p.numPoint <= 1 {
		return p.rect.Min.X
	}
	return p.rect.Min.X + i*(p.rect.Dx()-1)/(p.numPoint-1)
}

func (p panel) y(v float64) int {
	if p.hi <= p.lo {
		return p.rect.Max.Y
	}
	frac := math.Max(0, math.Min(1, (v-p.lo)/(p.hi-p.lo)))
	return p.rect.Max.Y - int(frac*float64(p.rect.Dy()-1))
}

func (p panel) at(i int, v float64) image.Point {
	return image.Pt(p.x(i), p.y(v))
}

// grid splits the panel into cols by rows cells.
func (p panel) grid(cols, rows int, col color.RGBA) {
	r := p.rect
	for i := 0; i <= cols; i++ {
		x := r.Min.X + r.Dx()*i/max(1, cols)
		p.line(image.Pt(x, r.Min.Y), image.Pt(x, r.Max.Y), col)
	}
	for i := 0; i <= rows; i++ {
		y := r.Min.Y + r.Dy()*i/max(1, rows)
		p.line(image.Pt(r.Min.X, y), image.Pt(r.Max.X, y), col)
	}
}

func (p panel) level(v float64, col color.RGBA) {
	y := p.y(v)
	p.line(image.Pt(p.rect.Min.X, y), image.Pt(p.rect.Max.X, y), col)
}

func (p panel) vertical(i int, col color.RGBA) {
	x := p.x(i)
	p.line(image.Pt(x, p.rect.Min.Y), image.Pt(x, p.rect.Max.Y), col)
}

// polyline joins consecutive finite values; a NaN breaks the line.
func (p panel) polyline(values []float64, col color.RGBA) {
	var prev image.Point
	joined := false
	for i, v := range values {
		if !finite(v) {
			joined = false
			continue
		}
		pt := p.at(i, v)
		if joined {
			p.line(prev, pt, col)
		}
		prev, joined = pt, true
	}
}
