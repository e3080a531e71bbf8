package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 600
	placeholderHeight = 200
)

var placeholderBackground = color.RGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}

// placeholder renders a "detection failed" card standing in for a table image.
func placeholder(index, rows, cols int) ([]byte, image.Point, error) {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBackground), image.Point{}, draw.Src)

	lines := []string{fmt.Sprintf("Table %d", index)}
	if rows > 0 || cols > 0 {
		lines = append(lines, fmt.Sprintf("(%d rows x %d cols)", rows, cols))
	}
	lines = append(lines, "detection failed")

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.Black, Face: face}
	lineHeight := face.Metrics().Height.Ceil() + 6
	top := (placeholderHeight - lineHeight*len(lines)) / 2
	for i, line := range lines {
		width := d.MeasureString(line).Ceil()
		d.Dot = fixed.P((placeholderWidth-width)/2, top+lineHeight*(i+1))
		d.DrawString(line)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), img.Bounds().Size(), nil
}
