// Package render draws nutrition tables as PNG images for chat replies.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
)

var ErrEmpty = errors.New("no rows to render")

const (
	fontSize   = 20
	rowHeight  = 36
	cellPadX   = 14
	margin     = 16
	maxNameLen = 28
)

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	headerFill = color.RGBA{0x2e, 0x7d, 0x32, 0xff}
	headerText = color.RGBA{0xff, 0xff, 0xff, 0xff}
	stripeFill = color.RGBA{0xf1, 0xf8, 0xe9, 0xff}
	totalFill  = color.RGBA{0xc8, 0xe6, 0xc9, 0xff}
	gridColor  = color.RGBA{0xbd, 0xbd, 0xbd, 0xff}
	textColor  = color.RGBA{0x21, 0x21, 0x21, 0xff}
)

var header = []string{"Продукт", "Вес, г", "Ккал", "Белки", "Жиры", "Углев.", "Клетч."}

type faces struct {
	regular font.Face
	bold    font.Face
}

var (
	loadOnce sync.Once
	loaded   faces
	loadErr  error
)

func loadFaces() (faces, error) {
	loadOnce.Do(func() {
		loaded.regular, loadErr = newFace(goregular.TTF)
		if loadErr != nil {
			return
		}
		loaded.bold, loadErr = newFace(gobold.TTF)
	})
	return loaded, loadErr
}

func newFace(ttf []byte) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: fontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// Table renders one row per item and, when total is non-nil, a bold
// summary row at the bottom.
func Table(items []nutrition.Result, total *nutrition.Result) ([]byte, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	fc, err := loadFaces()
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(items)+1)
	for _, it := range items {
		rows = append(rows, cells(truncate(it.Name, maxNameLen), it))
	}
	if total != nil {
		rows = append(rows, cells("Итого", *total))
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = measure(fc.bold, h)
	}
	for _, r := range rows {
		for i, c := range r {
			if w := measure(fc.bold, c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	tableW := 0
	for i := range widths {
		widths[i] += 2 * cellPadX
		tableW += widths[i]
	}

	width := tableW + 2*margin
	height := (len(rows)+1)*rowHeight + 2*margin
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	y := margin
	fill(img, margin, y, tableW, headerFill)
	drawRow(img, fc.bold, header, widths, y, headerText)
	y += rowHeight
	for i, r := range rows {
		isTotal := total != nil && i == len(rows)-1
		face := fc.regular
		switch {
		case isTotal:
			fill(img, margin, y, tableW, totalFill)
			face = fc.bold
		case i%2 == 1:
			fill(img, margin, y, tableW, stripeFill)
		}
		drawRow(img, face, r, widths, y, textColor)
		y += rowHeight
	}
	grid(img, widths, len(rows)+1)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode table png: %w", err)
	}
	return buf.Bytes(), nil
}

func cells(name string, r nutrition.Result) []string {
	return []string{
		name,
		strconv.Itoa(r.Grams),
		strconv.Itoa(r.Calories),
		formatGrams(r.ProteinG),
		formatGrams(r.FatG),
		formatGrams(r.CarbsG),
		formatGrams(r.FiberG),
	}
}

func formatGrams(v float64) string {
	return strconv.FormatFloat(nutrition.Round1(v), 'f', 1, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func fill(img *image.RGBA, x, y, w int, c color.Color) {
	draw.Draw(img, image.Rect(x, y, x+w, y+rowHeight), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawRow writes the cells left aligned in the first column and right
// aligned in the numeric ones.
func drawRow(img *image.RGBA, face font.Face, row []string, widths []int, top int, c color.Color) {
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	m := face.Metrics()
	baseline := top + (rowHeight+m.Ascent.Ceil()-m.Descent.Ceil())/2
	x := margin
	for i, text := range row {
		tx := x + cellPadX
		if i > 0 {
			tx = x + widths[i] - cellPadX - measure(face, text)
		}
		d.Dot = fixed.P(tx, baseline)
		d.DrawString(text)
		x += widths[i]
	}
}

func grid(img *image.RGBA, widths []int, rows int) {
	tableW := 0
	for _, w := range widths {
		tableW += w
	}
	bottom := margin + rows*rowHeight
	for r := 0; r <= rows; r++ {
		y := margin + r*rowHeight
		for x := margin; x <= margin+tableW; x++ {
			img.Set(x, y, gridColor)
		}
	}
	x := margin
	for i := 0; i <= len(widths); i++ {
		for y := margin; y <= bottom; y++ {
			img.Set(x, y, gridColor)
		}
		if i < len(widths) {
			x += widths[i]
		}
	}
}
