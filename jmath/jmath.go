package jmath

import (
	"structs"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
	"honnef.co/go/curve"
)

const Epsilon = 1e-6

type Transform struct {
	_ structs.HostLayout

	Matrix      [4]float32
	Translation [2]float32
}

var Identity = Transform{
	Matrix: [4]float32{1, 0, 0, 1},
}

func Translate(x, y float32) Transform {
	return Transform{
		Matrix:      [4]float32{1, 0, 0, 1},
		Translation: [2]float32{x, y},
	}
}

func Scale(sx, sy float32) Transform {
	return Transform{
		Matrix: [4]float32{sx, 0, 0, sy},
	}
}

// Rotate returns a rotation by theta radians. With y pointing down, positive
// angles rotate clockwise.
func Rotate(theta float32) Transform {
	s, c := math32.Sin(theta), math32.Cos(theta)
	return Transform{
		Matrix: [4]float32{c, s, -s, c},
	}
}

// Mul returns t∘other, that is, other is applied first.
func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Matrix: [4]float32{
			t.Matrix[0]*other.Matrix[0] + t.Matrix[2]*other.Matrix[1],
			t.Matrix[1]*other.Matrix[0] + t.Matrix[3]*other.Matrix[1],
			t.Matrix[0]*other.Matrix[2] + t.Matrix[2]*other.Matrix[3],
			t.Matrix[1]*other.Matrix[2] + t.Matrix[3]*other.Matrix[3],
		},
		Translation: [2]float32{
			t.Matrix[0]*other.Translation[0] +
				t.Matrix[2]*other.Translation[1] +
				t.Translation[0],
			t.Matrix[1]*other.Translation[0] +
				t.Matrix[3]*other.Translation[1] +
				t.Translation[1],
		},
	}
}

func (t Transform) Apply(x, y float32) [2]float32 {
	return [2]float32{
		t.Matrix[0]*x + t.Matrix[2]*y + t.Translation[0],
		t.Matrix[1]*x + t.Matrix[3]*y + t.Translation[1],
	}
}

// Quad transforms the axis-aligned rectangle (x0, y0)-(x1, y1) and returns its
// corners in the order top-left, top-right, bottom-right, bottom-left.
func (t Transform) Quad(x0, y0, x1, y1 float32) [4][2]float32 {
	return [4][2]float32{
		t.Apply(x0, y0),
		t.Apply(x1, y0),
		t.Apply(x1, y1),
		t.Apply(x0, y1),
	}
}

func TransformFromAffine(transform curve.Affine) Transform {
	c := transform.Coefficients()
	return Transform{
		Matrix:      [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])},
		Translation: [2]float32{float32(c[4]), float32(c[5])},
	}
}

// AlignUp rounds n up to the next multiple of alignment, which must be a power
// of two.
func AlignUp[T constraints.Integer](n, alignment T) T {
	return (n + alignment - 1) &^ (alignment - 1)
}
