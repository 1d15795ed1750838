package charts

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/session"
)

// Heatmap cell geometry, sized for a "-0.00" label in the 7x13 face.
const (
	cellW     = 64
	cellH     = 26
	cellPadX  = 8
	headerH   = 22
	legendGap = 14
)

// Two-ended ramp endpoints: strong negative correlation renders cool blue,
// strong positive renders warm red, zero is white.
var (
	rampNeg  = color.RGBA{R: 59, G: 76, B: 192, A: 255}
	rampPos  = color.RGBA{R: 180, G: 4, B: 38, A: 255}
	cellGray = color.RGBA{R: 226, G: 226, B: 226, A: 255}
)

// RenderHeatmap draws the correlation matrix as a colour-ramped grid with a
// per-cell coefficient label. Row labels carry the full metric names; column
// headers use matching index numbers, since the bitmap face cannot rotate
// text. Missing pairs render as neutral gray "n/a" cells.
func RenderHeatmap(m *session.CorrelationMatrix) image.Image {
	face := basicfont.Face7x13
	labelW := 0
	for i, name := range m.Metrics {
		w := font.MeasureString(face, fmt.Sprintf("%2d  %s", i+1, name)).Ceil()
		if w > labelW {
			labelW = w
		}
	}
	labelW += 2 * cellPadX

	n := len(m.Metrics)
	width := labelW + n*cellW + cellPadX
	height := headerH + n*cellH + legendGap + face.Height + cellPadX
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	// Column index headers.
	for j := range m.Metrics {
		label := fmt.Sprintf("%d", j+1)
		x := labelW + j*cellW + (cellW-font.MeasureString(face, label).Ceil())/2
		drawText(img, face, label, x, headerH-6, color.Black)
	}

	for i, a := range m.Metrics {
		y := headerH + i*cellH
		drawText(img, face, fmt.Sprintf("%2d  %s", i+1, a), cellPadX, y+cellH/2+face.Height/2-2, color.Black)
		for j, b := range m.Metrics {
			x := labelW + j*cellW
			rect := image.Rect(x, y, x+cellW-1, y+cellH-1)
			v, ok := m.At(a, b)
			if !ok {
				draw.Draw(img, rect, image.NewUniform(cellGray), image.Point{}, draw.Src)
				centerText(img, face, "n/a", rect, color.RGBA{R: 110, G: 110, B: 110, A: 255})
				continue
			}
			bg := rampColor(v)
			draw.Draw(img, rect, image.NewUniform(bg), image.Point{}, draw.Src)
			centerText(img, face, fmt.Sprintf("%.2f", v), rect, textColorFor(bg))
		}
	}

	drawText(img, face, "Pearson correlation: -1 blue, 0 white, +1 red; n/a = below sample threshold",
		cellPadX, height-cellPadX, color.Black)
	return img
}

// rampColor blends white toward the blue or red endpoint by |v|.
func rampColor(v float64) color.RGBA {
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}
	end := rampPos
	t := v
	if v < 0 {
		end = rampNeg
		t = -v
	}
	blend := func(from, to uint8) uint8 {
		return uint8(float64(from) + (float64(to)-float64(from))*t)
	}
	return color.RGBA{
		R: blend(255, end.R),
		G: blend(255, end.G),
		B: blend(255, end.B),
		A: 255,
	}
}

// textColorFor keeps labels readable on saturated cells.
func textColorFor(bg color.RGBA) color.Color {
	// Perceived luma, ITU-R BT.601 weights.
	luma := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if luma < 140 {
		return color.White
	}
	return color.Black
}

func drawText(img *image.RGBA, face font.Face, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func centerText(img *image.RGBA, face font.Face, text string, rect image.Rectangle, col color.Color) {
	tw := font.MeasureString(face, text).Ceil()
	x := rect.Min.X + (rect.Dx()-tw)/2
	y := rect.Min.Y + rect.Dy()/2 + face.Metrics().Ascent.Ceil()/2 - 1
	drawText(img, face, text, x, y, col)
}
