package detector

import (
	"image"
	"image/color"
)

// mask is a single-channel image where 0 is background and anything else is
// foreground. Morphology here is hand-rolled on the standard image types.
type mask struct {
	w, h int
	pix  []uint8
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, pix: make([]uint8, w*h)}
}

func (m *mask) at(x, y int) uint8 { return m.pix[y*m.w+x] }

// grayscale converts img to 8-bit luma, row-major from its bounds' origin.
func grayscale(img image.Image) *mask {
	b := img.Bounds()
	out := newMask(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < out.h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.pix[y*out.w:(y+1)*out.w], src.Pix[off:off+out.w])
		}
		return out
	}
	for y := 0; y < out.h; y++ {
		for x := 0; x < out.w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out.pix[y*out.w+x] = g.Y
		}
	}
	return out
}

// thresholdInv marks pixels at or below level as foreground, so dark ink on a
// light page becomes the foreground.
func thresholdInv(gray *mask, level uint8) *mask {
	out := newMask(gray.w, gray.h)
	for i, v := range gray.pix {
		if v <= level {
			out.pix[i] = 255
		}
	}
	return out
}

// adaptiveThresholdInv compares each pixel with the mean of its block×block
// neighbourhood less c. The window is clipped at the borders.
func adaptiveThresholdInv(gray *mask, block int, c float64) *mask {
	w, h := gray.w, gray.h
	// summed-area table with a zero row and column
	sat := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(gray.pix[y*w+x])
			sat[(y+1)*(w+1)+x+1] = sat[y*(w+1)+x+1] + row
		}
	}
	r := block / 2
	out := newMask(w, h)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-r), min(h, y+r+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-r), min(w, x+r+1)
			sum := sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
			mean := float64(sum) / float64((x1-x0)*(y1-y0))
			if float64(gray.pix[y*w+x]) <= mean-c {
				out.pix[y*w+x] = 255
			}
		}
	}
	return out
}

// morph1D runs a sliding min (erode) or max (dilate) of length k along rows
// (horizontal) or columns. The window is anchored at k/2; dilation uses the
// reflected window so an opening restores surviving runs exactly.
func (m *mask) morph1D(k int, horizontal, erode bool) *mask {
	if k <= 1 {
		return m.clone()
	}
	n, lines := m.w, m.h
	if !horizontal {
		n, lines = m.h, m.w
	}
	before := k / 2
	after := k - 1 - before
	if !erode {
		before, after = after, before
	}

	out := newMask(m.w, m.h)
	line := make([]uint8, n)
	prefix := make([]int, n+1)
	for l := 0; l < lines; l++ {
		for i := 0; i < n; i++ {
			if horizontal {
				line[i] = m.pix[l*m.w+i]
			} else {
				line[i] = m.pix[i*m.w+l]
			}
			prefix[i+1] = prefix[i]
			if line[i] != 0 {
				prefix[i+1]++
			}
		}
		for i := 0; i < n; i++ {
			lo, hi := max(0, i-before), min(n, i+after+1)
			count := prefix[hi] - prefix[lo]
			var set bool
			if erode {
				set = count == hi-lo
			} else {
				set = count > 0
			}
			if !set {
				continue
			}
			if horizontal {
				out.pix[l*m.w+i] = 255
			} else {
				out.pix[i*m.w+l] = 255
			}
		}
	}
	return out
}

func (m *mask) erode(kw, kh int) *mask {
	return m.morph1D(kw, true, true).morph1D(kh, false, true)
}

func (m *mask) dilate(kw, kh int) *mask {
	return m.morph1D(kw, true, false).morph1D(kh, false, false)
}

func (m *mask) open(kw, kh int) *mask  { return m.erode(kw, kh).dilate(kw, kh) }
func (m *mask) close(kw, kh int) *mask { return m.dilate(kw, kh).erode(kw, kh) }

func (m *mask) clone() *mask {
	out := newMask(m.w, m.h)
	copy(out.pix, m.pix)
	return out
}

// blendHalf combines two masks at half weight each. A pixel set in either
// input stays non-zero.
func blendHalf(a, b *mask) *mask {
	out := newMask(a.w, a.h)
	for i := range out.pix {
		out.pix[i] = a.pix[i]/2 + b.pix[i]/2
	}
	return out
}

// blob is one 8-connected foreground component.
type blob struct {
	bounds image.Rectangle
	// filled counts the component's pixels plus any holes it encloses, which
	// approximates the area inside its outer contour.
	filled int
}

// externalBlobs labels 8-connected components in scan order and drops those
// nested inside another component's box.
func externalBlobs(m *mask) []blob {
	labels := make([]int32, len(m.pix))
	var blobs []blob
	queue := make([]int, 0, 1024)

	for start, v := range m.pix {
		if v == 0 || labels[start] != 0 {
			continue
		}
		id := int32(len(blobs) + 1)
		labels[start] = id
		queue = append(queue[:0], start)
		bx0, by0 := start%m.w, start/m.w
		bx1, by1 := bx0, by0

		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			px, py := p%m.w, p/m.w
			bx0, by0 = min(bx0, px), min(by0, py)
			bx1, by1 = max(bx1, px), max(by1, py)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= m.w || ny >= m.h {
						continue
					}
					q := ny*m.w + nx
					if m.pix[q] != 0 && labels[q] == 0 {
						labels[q] = id
						queue = append(queue, q)
					}
				}
			}
		}

		r := image.Rect(bx0, by0, bx1+1, by1+1)
		blobs = append(blobs, blob{bounds: r, filled: filledArea(labels, m.w, r, id)})
	}

	out := blobs[:0:0]
	for i, b := range blobs {
		nested := false
		for j, o := range blobs {
			if i != j && b.bounds != o.bounds && b.bounds.In(o.bounds) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, b)
		}
	}
	return out
}

// filledArea counts the pixels of r that cannot reach r's border through
// 4-connected non-component pixels.
func filledArea(labels []int32, stride int, r image.Rectangle, id int32) int {
	w, h := r.Dx()+2, r.Dy()+2
	outside := make([]bool, w*h)
	wall := func(x, y int) bool {
		gx, gy := r.Min.X+x-1, r.Min.Y+y-1
		if gx < r.Min.X || gy < r.Min.Y || gx >= r.Max.X || gy >= r.Max.Y {
			return false
		}
		return labels[gy*stride+gx] == id
	}

	stack := []int{0}
	outside[0] = true
	reached := 0
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		x, y := p%w, p/w
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			q := ny*w + nx
			if outside[q] || wall(nx, ny) {
				continue
			}
			outside[q] = true
			stack = append(stack, q)
		}
	}
	// the padding ring is always reached
	ring := w*h - r.Dx()*r.Dy()
	return r.Dx()*r.Dy() - (reached - ring)
}
