// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//-------------------------------------------------------------------
// Dim
//-------------------------------------------------------------------

// Number of spatial dimensions of an estimation
type Dim int

const (
	DIM2 = Dim(2)
	DIM3 = Dim(3)
)

func (d Dim) IsValid() bool {
	return d == DIM2 || d == DIM3
}

// Minimum number of sources (= equations) to solve a position
func (d Dim) MinSources() int {
	return int(d) + 1
}

//-------------------------------------------------------------------
// Point
//-------------------------------------------------------------------

// Cartesian position in a local frame [m]. Z is ignored in 2D.
type Point struct {
	X float64
	Y float64
	Z float64
}

func NewPoint2D(x, y float64) *Point {
	return &Point{X: x, Y: y}
}

func NewPoint3D(x, y, z float64) *Point {
	return &Point{X: x, Y: y, Z: z}
}

// Build a point from the first dim elements of v
func PointFromVec(v []float64, dim Dim) Point {
	var p Point
	for i := 0; i < int(dim) && i < len(v); i++ {
		p.Set(i, v[i])
	}
	return p
}

// Coordinate by index (0:X, 1:Y, 2:Z)
func (p *Point) At(i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	case 2:
		return p.Z
	}
	panic(fmt.Sprintf("point index out of range: %d", i))
}

func (p *Point) Set(i int, v float64) {
	switch i {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	case 2:
		p.Z = v
	default:
		panic(fmt.Sprintf("point index out of range: %d", i))
	}
}

// Coordinates as a slice of length dim
func (p *Point) Vec(dim Dim) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = p.At(i)
	}
	return v
}

// Coordinates as a gonum vector of length dim
func (p *Point) VecDense(dim Dim) *mat.VecDense {
	return mat.NewVecDense(int(dim), p.Vec(dim))
}

// Squared norm over the first dim coordinates
func (p *Point) NormSq(dim Dim) float64 {
	s := 0.0
	for i := 0; i < int(dim); i++ {
		s += SQ(p.At(i))
	}
	return s
}

// Euclidean distance over the first dim coordinates
func (p *Point) DistTo(q *Point, dim Dim) float64 {
	return EucDist(p, q, dim)
}

func (p *Point) String() string {
	return fmt.Sprintf("%.6f %.6f %.6f", p.X, p.Y, p.Z)
}

// Euclidean distance between a and b over the first dim coordinates
func EucDist(a, b *Point, dim Dim) float64 {
	s := 0.0
	for i := 0; i < int(dim); i++ {
		s += SQ(a.At(i) - b.At(i))
	}
	return math.Sqrt(s)
}

// Partial derivative of |a - b| with respect to coordinate i of a
func DistD(a, b *Point, i int, dim Dim) float64 {
	d := EucDist(a, b, dim)
	if d == 0 {
		return 0
	}
	return (a.At(i) - b.At(i)) / d
}

// Mean position of points
func Centroid(pts []Point, dim Dim) Point {
	var c Point
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		for i := 0; i < int(dim); i++ {
			c.Set(i, c.At(i)+p.At(i))
		}
	}
	for i := 0; i < int(dim); i++ {
		c.Set(i, c.At(i)/float64(len(pts)))
	}
	return c
}
