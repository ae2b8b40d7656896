package dataset

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
)

const (
	traceOpen  = "<trace>"
	traceClose = "</trace>"

	// traceSupersample is the canvas resolution relative to the sample grid.
	traceSupersample = 8
)

// Point is one pen position of a handwriting trace.
type Point struct {
	X, Y float64
}

// ParseTraceGroup reads "<trace>x y, x y, ...</trace>" blocks. Coordinates
// are scaled by 100 and truncated to whole units.
func ParseTraceGroup(group string) ([][]Point, error) {
	var traces [][]Point
	rest := group
	for {
		start := strings.Index(rest, traceOpen)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], traceClose)
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed %s", ErrFormat, traceOpen)
		}
		body := rest[start+len(traceOpen) : start+end]
		rest = rest[start+end+len(traceClose):]

		var trace []Point
		for _, pair := range strings.Split(body, ",") {
			fields := strings.Fields(pair)
			if len(fields) == 0 {
				continue
			}
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: trace %d: point %q", ErrFormat, len(traces), pair)
			}
			x, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: trace %d: %w", ErrFormat, len(traces), err)
			}
			y, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: trace %d: %w", ErrFormat, len(traces), err)
			}
			trace = append(trace, Point{X: math.Trunc(x * 100), Y: math.Trunc(y * 100)})
		}
		if len(trace) > 0 {
			traces = append(traces, trace)
		}
	}
	if len(traces) == 0 {
		return nil, fmt.Errorf("%w: no traces", ErrFormat)
	}
	return traces, nil
}

// RenderTraceGroup draws the traces of group into a rows×cols sample with
// values in {-1, 1}. The strokes are translated to the origin, drawn with a
// thickness of 3% of the mean extent, blurred and thresholded at the mean
// intensity.
func RenderTraceGroup(group string, rows, cols int) ([]float64, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrFormat, rows, cols)
	}
	traces, err := ParseTraceGroup(group)
	if err != nil {
		return nil, err
	}

	minX, maxX := traces[0][0].X, traces[0][0].X
	minY, maxY := traces[0][0].Y, traces[0][0].Y
	for _, tr := range traces {
		for _, p := range tr {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	width, height := maxX-minX, maxY-minY
	if width == 0 {
		width = 100
	}
	if height == 0 {
		height = 100
	}
	thickness := math.Trunc((width + height) / 2 * 30 / 1000)

	canvas := image.NewGray(image.Rect(0, 0, cols*traceSupersample, rows*traceSupersample))
	sx := float64(cols*traceSupersample-1) / width
	sy := float64(rows*traceSupersample-1) / height
	radius := math.Max(0.5, thickness*(sx+sy)/4)

	for _, tr := range traces {
		for j := range tr {
			a := tr[j]
			b := a
			if j+1 < len(tr) {
				b = tr[j+1]
			}
			// y grows upwards in trace coordinates
			stroke(canvas,
				(a.X-minX)*sx, (height-(a.Y-minY))*sy,
				(b.X-minX)*sx, (height-(b.Y-minY))*sy,
				radius)
		}
	}

	grid := downsample(canvas, rows, cols)
	grid = boxBlur(grid, rows, cols, max(1, min(rows, cols)/5))

	var mean float64
	for _, v := range grid {
		mean += v
	}
	mean /= float64(len(grid))

	sample := make([]float64, len(grid))
	for i, v := range grid {
		if v > mean {
			sample[i] = ScalePixel(255)
		} else {
			sample[i] = ScalePixel(0)
		}
	}
	return sample, nil
}

// stroke stamps discs of the given radius along the segment.
func stroke(img *image.Gray, x0, y0, x1, y1, radius float64) {
	length := math.Hypot(x1-x0, y1-y0)
	steps := int(math.Ceil(length/0.5)) + 1
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		disc(img, x0+(x1-x0)*t, y0+(y1-y0)*t, radius)
	}
}

func disc(img *image.Gray, cx, cy, radius float64) {
	b := img.Bounds()
	r2 := radius * radius
	for y := int(math.Floor(cy - radius)); y <= int(math.Ceil(cy+radius)); y++ {
		for x := int(math.Floor(cx - radius)); x <= int(math.Ceil(cx+radius)); x++ {
			if !image.Pt(x, y).In(b) {
				continue
			}
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r2 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
}

// downsample averages traceSupersample² blocks into a rows×cols grid.
func downsample(img *image.Gray, rows, cols int) []float64 {
	grid := make([]float64, rows*cols)
	area := float64(traceSupersample * traceSupersample)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum float64
			for y := r * traceSupersample; y < (r+1)*traceSupersample; y++ {
				for x := c * traceSupersample; x < (c+1)*traceSupersample; x++ {
					sum += float64(img.GrayAt(x, y).Y)
				}
			}
			grid[r*cols+c] = sum / area
		}
	}
	return grid
}

// boxBlur averages each cell over a size×size window clipped to the grid.
func boxBlur(grid []float64, rows, cols, size int) []float64 {
	if size <= 1 {
		return grid
	}
	lo, hi := -(size-1)/2, size/2
	out := make([]float64, len(grid))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum float64
			var n int
			for dr := lo; dr <= hi; dr++ {
				for dc := lo; dc <= hi; dc++ {
					rr, cc := r+dr, c+dc
					if rr < 0 || rr >= rows || cc < 0 || cc >= cols {
						continue
					}
					sum += grid[rr*cols+cc]
					n++
				}
			}
			out[r*cols+c] = sum / float64(n)
		}
	}
	return out
}
