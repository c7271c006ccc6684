package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/aouyang1/go-stockforecaster/floatsunrolled"
)

var ErrUnknownKernel = errors.New("unknown kernel")

// Kernel names the similarity function between two observations of a support vector regression
type Kernel string

const (
	// KernelRBF is the gaussian radial basis function exp(-gamma*|a-b|^2)
	KernelRBF Kernel = "rbf"

	// KernelLinear is the dot product of the two observations
	KernelLinear Kernel = "linear"
)

// Validate checks that the kernel is supported. An empty kernel defaults to rbf.
func (k Kernel) Validate() (Kernel, error) {
	switch k {
	case "":
		return KernelRBF, nil
	case KernelRBF, KernelLinear:
		return k, nil
	default:
		return "", fmt.Errorf("kernel %q, %w", string(k), ErrUnknownKernel)
	}
}

// Eval computes the kernel between observations a and b
func (k Kernel) Eval(a, b []float64, gamma float64) float64 {
	switch k {
	case KernelLinear:
		return floatsunrolled.Dot(a, b)
	default:
		return math.Exp(-gamma * floatsunrolled.SqDist(a, b))
	}
}

// gram computes the symmetric kernel matrix between all rows
func (k Kernel) gram(rows [][]float64, gamma float64) [][]float64 {
	m := len(rows)
	g := make([][]float64, m)
	for i := 0; i < m; i++ {
		g[i] = make([]float64, m)
	}
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			v := k.Eval(rows[i], rows[j], gamma)
			g[i][j] = v
			g[j][i] = v
		}
	}
	return g
}
