// Package distort augments training images with random affine transforms.
package distort

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"mlp_lib/nn"
)

// Distorter produces a replacement batch of the same shape. Frequency is the
// epoch interval at which a trainer applies it; values below 1 disable it.
type Distorter interface {
	Distort(batch [][]float64) ([][]float64, error)
	Frequency() int
}

// Kind names one family of affine transform.
type Kind int

const (
	Rotate Kind = iota
	Scale
	Shear
	Translate
)

func (k Kind) String() string {
	switch k {
	case Rotate:
		return "rotate"
	case Scale:
		return "scale"
	case Shear:
		return "shear"
	case Translate:
		return "translate"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ImageDistorter treats every sample as a Rows×Cols grey image with values in
// [Min, Max] and applies one random transform per sample, chosen with equal
// probability:
//
//	rotate about the centre by an angle in [-π/12, π/12)
//	scale by a factor in [0.85, 1.15)
//	shear by a factor in [-0.15, 0.15)
//	translate by up to 5 pixels on each axis
//
// An ImageDistorter is not safe for concurrent use.
type ImageDistorter struct {
	Rows, Cols int
	Min, Max   float64
	Every      int

	rnd *rand.Rand
}

// NewImageDistorter returns a distorter for rows×cols samples in [-1, 1].
// A nil src seeds from the clock.
func NewImageDistorter(rows, cols, every int, src rand.Source) *ImageDistorter {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return &ImageDistorter{
		Rows:  rows,
		Cols:  cols,
		Min:   -1,
		Max:   1,
		Every: every,
		rnd:   rand.New(src),
	}
}

// Frequency implements Distorter.
func (d *ImageDistorter) Frequency() int {
	return d.Every
}

// Distort implements Distorter. The input batch is not modified.
func (d *ImageDistorter) Distort(batch [][]float64) ([][]float64, error) {
	n := d.Rows * d.Cols
	for i, s := range batch {
		if len(s) != n {
			return nil, &nn.ShapeError{What: "sample", Index: i, Want: n, Got: len(s)}
		}
	}

	out := make([][]float64, len(batch))
	for i, s := range batch {
		img := VectorToGray(s, d.Cols, d.Rows, d.Min, d.Max)
		_, m := d.RandomTransform()
		warped, err := Affine(img, m)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = GrayToVector(warped, d.Min, d.Max)
	}
	return out, nil
}

// uniform returns a value in [-1, 1).
func (d *ImageDistorter) uniform() float64 {
	return 2*d.rnd.Float64() - 1
}

// RandomTransform draws a transform kind and its parameters.
func (d *ImageDistorter) RandomTransform() (Kind, *mat.Dense) {
	p := d.rnd.Float64()
	switch {
	case p < 0.25:
		return Rotate, Rotation(d.uniform()/12*math.Pi, float64(d.Cols/2), float64(d.Rows/2))
	case p < 0.5:
		return Scale, Scaling(d.uniform()*15/100 + 1)
	case p < 0.75:
		return Shear, Shearing(d.uniform() * 15 / 100)
	default:
		return Translate, Translation(d.uniform()*5, d.uniform()*5)
	}
}

// Rotation turns by theta radians about (cx, cy).
func Rotation(theta, cx, cy float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, cx - c*cx + s*cy,
		s, c, cy - s*cx - c*cy,
		0, 0, 1,
	})
}

// Scaling scales both axes by f about the origin.
func Scaling(f float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		f, 0, 0,
		0, f, 0,
		0, 0, 1,
	})
}

// Shearing shears both axes by f: x' = x + f·y, y' = f·x + y.
func Shearing(f float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, f, 0,
		f, 1, 0,
		0, 0, 1,
	})
}

// Translation shifts by (tx, ty) pixels.
func Translation(tx, ty float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	})
}

// Affine maps img through the homogeneous transform m. Every destination
// pixel is sampled bilinearly from the source position m⁻¹·p; positions
// outside the source stay black.
func Affine(img *image.Gray, m mat.Matrix) (*image.Gray, error) {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("inverting transform: %w", err)
	}

	b := img.Bounds()
	out := image.NewGray(b)
	src := mat.NewVecDense(3, nil)
	dst := mat.NewVecDense(3, nil)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetVec(0, float64(x)+0.5)
			dst.SetVec(1, float64(y)+0.5)
			dst.SetVec(2, 1)
			src.MulVec(&inv, dst)
			v, ok := bilinear(img, src.AtVec(0)-0.5, src.AtVec(1)-0.5)
			if ok {
				out.SetGray(x, y, color.Gray{Y: v})
			}
		}
	}
	return out, nil
}

func bilinear(img *image.Gray, fx, fy float64) (uint8, bool) {
	b := img.Bounds()
	if fx < float64(b.Min.X)-0.5 || fy < float64(b.Min.Y)-0.5 ||
		fx > float64(b.Max.X)-0.5 || fy > float64(b.Max.Y)-0.5 {
		return 0, false
	}
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)

	at := func(x, y int) float64 {
		p := image.Pt(x, y)
		if !p.In(b) {
			return 0
		}
		return float64(img.GrayAt(x, y).Y)
	}
	top := at(x0, y0)*(1-tx) + at(x0+1, y0)*tx
	bottom := at(x0, y0+1)*(1-tx) + at(x0+1, y0+1)*tx
	v := top*(1-ty) + bottom*ty
	return uint8(math.Max(0, math.Min(255, math.Round(v)))), true
}

// VectorToGray maps values in [lo, hi] onto grey levels, row-major.
func VectorToGray(v []float64, width, height int, lo, hi float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		g := (v[i] - lo) * 255 / (hi - lo)
		img.Pix[i] = uint8(math.Max(0, math.Min(255, math.Round(g))))
	}
	return img
}

// GrayToVector is the inverse of VectorToGray.
func GrayToVector(img *image.Gray, lo, hi float64) []float64 {
	b := img.Bounds()
	v := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v = append(v, float64(img.GrayAt(x, y).Y)*(hi-lo)/255+lo)
		}
	}
	return v
}
