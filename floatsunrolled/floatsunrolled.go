// floatsunrolled is inspired by the SIMD blog post
// https://github.com/camdencheek/simd_blog/blob/main/main.go
//
// The kernel evaluations and dual updates of the support vector regression run through these
// loops. Lengths that are not a multiple of the batch finish with a scalar tail.
package floatsunrolled

import (
	"errors"
)

const UnrollBatch = 4

var ErrSliceLengthMismatch = errors.New("slices must have equal lengths")

func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(ErrSliceLengthMismatch)
	}

	var sum float64
	n := len(a) - len(a)%UnrollBatch
	for i := 0; i < n; i += UnrollBatch {
		aTmp := a[i : i+UnrollBatch : i+UnrollBatch]
		bTmp := b[i : i+UnrollBatch : i+UnrollBatch]
		s0 := aTmp[0] * bTmp[0]
		s1 := aTmp[1] * bTmp[1]
		s2 := aTmp[2] * bTmp[2]
		s3 := aTmp[3] * bTmp[3]
		sum += s0 + s1 + s2 + s3
	}
	for i := n; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// SqDist returns the squared euclidean distance between a and b
func SqDist(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(ErrSliceLengthMismatch)
	}

	var sum float64
	n := len(a) - len(a)%UnrollBatch
	for i := 0; i < n; i += UnrollBatch {
		aTmp := a[i : i+UnrollBatch : i+UnrollBatch]
		bTmp := b[i : i+UnrollBatch : i+UnrollBatch]
		d0 := aTmp[0] - bTmp[0]
		d1 := aTmp[1] - bTmp[1]
		d2 := aTmp[2] - bTmp[2]
		d3 := aTmp[3] - bTmp[3]
		sum += d0*d0 + d1*d1 + d2*d2 + d3*d3
	}
	for i := n; i < len(a); i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// AddScaled performs dst = dst + alpha * s
func AddScaled(dst []float64, alpha float64, s []float64) []float64 {
	if len(dst) != len(s) {
		panic(ErrSliceLengthMismatch)
	}

	n := len(s) - len(s)%UnrollBatch
	for i := 0; i < n; i += UnrollBatch {
		dstTmp := dst[i : i+UnrollBatch : i+UnrollBatch]
		sTmp := s[i : i+UnrollBatch : i+UnrollBatch]
		dstTmp[0] += alpha * sTmp[0]
		dstTmp[1] += alpha * sTmp[1]
		dstTmp[2] += alpha * sTmp[2]
		dstTmp[3] += alpha * sTmp[3]
	}
	for i := n; i < len(s); i++ {
		dst[i] += alpha * s[i]
	}
	return dst
}
