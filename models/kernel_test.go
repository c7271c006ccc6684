package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKernelValidate(t *testing.T) {
	testData := map[string]struct {
		kernel   Kernel
		expected Kernel
		err      error
	}{
		"empty":   {"", KernelRBF, nil},
		"rbf":     {KernelRBF, KernelRBF, nil},
		"linear":  {KernelLinear, KernelLinear, nil},
		"unknown": {"sigmoid", "", ErrUnknownKernel},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			k, err := td.kernel.Validate()
			assert.ErrorIs(t, err, td.err)
			assert.Equal(t, td.expected, k)
		})
	}
}

func TestKernelEval(t *testing.T) {
	testData := map[string]struct {
		kernel   Kernel
		a        []float64
		b        []float64
		gamma    float64
		expected float64
	}{
		"rbf identical":  {KernelRBF, []float64{1, 2}, []float64{1, 2}, 0.5, 1.0},
		"rbf distance":   {KernelRBF, []float64{0, 0}, []float64{3, 4}, 0.1, math.Exp(-2.5)},
		"linear":         {KernelLinear, []float64{1, 2}, []float64{3, 4}, 0.0, 11.0},
		"linear ignores": {KernelLinear, []float64{2}, []float64{3}, 10.0, 6.0},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, td.expected, td.kernel.Eval(td.a, td.b, td.gamma), 1e-12)
		})
	}
}
