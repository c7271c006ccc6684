package models

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aouyang1/go-stockforecaster/floatsunrolled"
	mat_ "github.com/aouyang1/go-stockforecaster/mat"
)

const (
	DefaultC          = 10.0
	DefaultEpsilon    = 0.05
	DefaultIterations = 5000
	DefaultTolerance  = 1e-3

	// diagonal entries of the kernel matrix below this are skipped by coordinate descent
	minKernelDiag = 1e-12
)

var (
	ErrNonPositiveC       = errors.New("non-positive regularization C")
	ErrNegativeEpsilon    = errors.New("negative epsilon")
	ErrNegativeGamma      = errors.New("negative gamma")
	ErrNegativeIterations = errors.New("negative iterations")
	ErrNegativeTolerance  = errors.New("negative tolerance")
)

// SVROptions represents input options to run the epsilon support vector regression
type SVROptions struct {
	// Kernel is the similarity function between observations. Defaults to rbf.
	Kernel Kernel `json:"kernel"`

	// C bounds the magnitude of each dual coefficient. Larger values fit the training data more closely.
	C float64 `json:"c"`

	// Epsilon is the half width of the insensitive tube in units of the target standard deviation.
	// Residuals inside the tube carry no loss.
	Epsilon float64 `json:"epsilon"`

	// Gamma is the rbf kernel width. 0.0 uses 1/(n_features * var(x)) of the standardized features.
	Gamma float64 `json:"gamma"`

	// Iterations is the maximum number of passes over all dual coefficients. 0 uses DefaultIterations.
	Iterations int `json:"iterations"`

	// Tolerance is the largest optimality violation of any dual coefficient, in target standard
	// deviations, to consider the fit converged.
	Tolerance float64 `json:"tolerance"`

	// FitIntercept centers the target on its mean which is used as the intercept
	FitIntercept bool `json:"fit_intercept"`

	// Shuffle visits the coefficients in a random order on each pass seeded by Seed
	Shuffle bool   `json:"shuffle"`
	Seed    uint64 `json:"seed"`
}

// Validate runs basic validation on SVR options
func (s *SVROptions) Validate() (*SVROptions, error) {
	if s == nil {
		s = NewDefaultSVROptions()
	}

	kernel, err := s.Kernel.Validate()
	if err != nil {
		return nil, err
	}
	s.Kernel = kernel

	if s.C <= 0 {
		return nil, ErrNonPositiveC
	}
	if s.Epsilon < 0 {
		return nil, ErrNegativeEpsilon
	}
	if s.Gamma < 0 {
		return nil, ErrNegativeGamma
	}
	if s.Iterations < 0 {
		return nil, ErrNegativeIterations
	}
	if s.Iterations == 0 {
		s.Iterations = DefaultIterations
	}
	if s.Tolerance < 0 {
		return nil, ErrNegativeTolerance
	}
	return s, nil
}

// NewDefaultSVROptions returns a default set of SVR options
func NewDefaultSVROptions() *SVROptions {
	return &SVROptions{
		Kernel:       KernelRBF,
		C:            DefaultC,
		Epsilon:      DefaultEpsilon,
		Iterations:   DefaultIterations,
		Tolerance:    DefaultTolerance,
		FitIntercept: true,
	}
}

// SVRRegression computes an epsilon insensitive support vector regression. The dual problem
//
//	min 0.5*b'Kb - t'b + epsilon*|b|_1  subject to |b_i| <= C
//
// is solved by coordinate descent with soft thresholding on standardized features and targets.
type SVRRegression struct {
	opt *SVROptions

	xMean []float64
	xStd  []float64
	yMean float64
	yStd  float64
	gamma float64

	// support vectors in standardized feature space with their dual coefficients
	sv   [][]float64
	beta []float64

	iterations int
	trained    bool
}

// NewSVRRegression initializes a support vector regression ready for fitting
func NewSVRRegression(opt *SVROptions) (*SVRRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &SVRRegression{
		opt: opt,
	}, nil
}

// Fit the model according to the given training data
func (s *SVRRegression) Fit(x, y mat.Matrix) error {
	if s.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, n := x.Dims()

	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	rows := mat_.Rows(x)
	yArr := mat.Col(nil, 0, y)
	for _, r := range rows {
		if !allFinite(r) {
			return fmt.Errorf("training data, %w", ErrNonFinite)
		}
	}
	if !allFinite(yArr) {
		return fmt.Errorf("target, %w", ErrNonFinite)
	}

	s.standardizeFit(rows, n)
	for _, r := range rows {
		s.standardize(r)
	}

	s.yMean, s.yStd = 0.0, 1.0
	if s.opt.FitIntercept {
		s.yMean = stat.Mean(yArr, nil)
	}
	if m > 1 {
		if std := stat.StdDev(yArr, nil); std > 0 {
			s.yStd = std
		}
	}
	t := make([]float64, m)
	for i, v := range yArr {
		t[i] = (v - s.yMean) / s.yStd
	}

	s.gamma = s.opt.Gamma
	if s.gamma == 0 {
		s.gamma = scaleGamma(rows, n)
	}

	k := s.opt.Kernel.gram(rows, s.gamma)
	beta, iterations, err := s.descend(k, t)
	s.iterations = iterations
	if err != nil {
		return err
	}

	s.sv = s.sv[:0]
	s.beta = s.beta[:0]
	for i, b := range beta {
		if b == 0 {
			continue
		}
		s.sv = append(s.sv, rows[i])
		s.beta = append(s.beta, b)
	}
	s.trained = true
	return nil
}

// descend runs coordinate descent on the dual coefficients given the kernel matrix and the
// standardized targets. The running kernel product f = K*beta is updated incrementally.
func (s *SVRRegression) descend(k [][]float64, t []float64) ([]float64, int, error) {
	m := len(t)
	beta := make([]float64, m)
	f := make([]float64, m)

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	var r *rand.Rand
	if s.opt.Shuffle {
		r = rand.New(rand.NewPCG(s.opt.Seed, s.opt.Seed))
	}

	for iter := 0; iter < s.opt.Iterations; iter++ {
		if r != nil {
			r.Shuffle(m, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		maxViolation := 0.0
		for _, i := range order {
			kii := k[i][i]
			if kii <= minKernelDiag {
				continue
			}
			grad := f[i] - t[i]
			maxViolation = math.Max(maxViolation, s.violation(beta[i], grad))

			betaNext := SoftThreshold(beta[i]-grad/kii, s.opt.Epsilon/kii)
			betaNext = math.Max(-s.opt.C, math.Min(s.opt.C, betaNext))

			if delta := betaNext - beta[i]; delta != 0 {
				floatsunrolled.AddScaled(f, delta, k[i])
				beta[i] = betaNext
			}
		}

		if math.IsNaN(maxViolation) || math.IsInf(maxViolation, 0) {
			return nil, iter + 1, fmt.Errorf("dual coefficients at pass %d, %w", iter, ErrNonFinite)
		}

		// break early if no coefficient violates its optimality condition by more than the tolerance
		if maxViolation <= s.opt.Tolerance {
			return beta, iter + 1, nil
		}
	}
	return nil, s.opt.Iterations, fmt.Errorf("no convergence after %d passes, %w", s.opt.Iterations, ErrNotConverged)
}

// violation returns how far a dual coefficient is from its optimality condition given the gradient
// of the smooth part of the objective
func (s *SVRRegression) violation(beta, grad float64) float64 {
	switch {
	case beta == 0:
		return math.Max(0, math.Abs(grad)-s.opt.Epsilon)
	case beta > 0:
		d := grad + s.opt.Epsilon
		if beta >= s.opt.C {
			return math.Max(0, d)
		}
		return math.Abs(d)
	default:
		d := grad - s.opt.Epsilon
		if beta <= -s.opt.C {
			return math.Max(0, -d)
		}
		return math.Abs(d)
	}
}

func (s *SVRRegression) standardizeFit(rows [][]float64, n int) {
	s.xMean = make([]float64, n)
	s.xStd = make([]float64, n)
	col := make([]float64, len(rows))
	for j := 0; j < n; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1.0
		}
		s.xMean[j] = mean
		s.xStd[j] = std
	}
}

func (s *SVRRegression) standardize(row []float64) {
	for j := range row {
		row[j] = (row[j] - s.xMean[j]) / s.xStd[j]
	}
}

// scaleGamma returns 1/(n_features * var(x)) over all standardized feature values
func scaleGamma(rows [][]float64, n int) float64 {
	all := make([]float64, 0, len(rows)*n)
	for _, r := range rows {
		all = append(all, r...)
	}
	_, v := stat.PopMeanVariance(all, nil)
	if v == 0 || math.IsNaN(v) {
		v = 1.0
	}
	return 1.0 / (float64(n) * v)
}

// Predict using the SVR model
func (s *SVRRegression) Predict(x mat.Matrix) ([]float64, error) {
	if s.opt == nil {
		return nil, ErrNoOptions
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	if !s.trained {
		return nil, ErrUntrained
	}

	_, xn := x.Dims()
	if xn != len(s.xMean) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", xn, len(s.xMean), ErrFeatureLenMismatch)
	}

	rows := mat_.Rows(x)
	res := make([]float64, len(rows))
	kv := make([]float64, len(s.sv))
	for i, r := range rows {
		s.standardize(r)
		for j, sv := range s.sv {
			kv[j] = s.opt.Kernel.Eval(sv, r, s.gamma)
		}
		res[i] = floatsunrolled.Dot(s.beta, kv)*s.yStd + s.yMean
	}
	if !allFinite(res) {
		return nil, ErrNonFinite
	}
	return res, nil
}

// Score computes the coefficient of determination of the prediction
func (s *SVRRegression) Score(x, y mat.Matrix) (float64, error) {
	return score(s, x, y)
}

// Intercept returns the target mean if FitIntercept is set to true. Defaults to 0.0 if not set.
func (s *SVRRegression) Intercept() float64 {
	return s.yMean
}

// Coef returns the dual coefficients of the support vectors in target units
func (s *SVRRegression) Coef() []float64 {
	c := make([]float64, len(s.beta))
	floats.ScaleTo(c, s.yStd, s.beta)
	return c
}

// SupportVectors returns the number of training observations with a non-zero dual coefficient
func (s *SVRRegression) SupportVectors() int {
	return len(s.sv)
}

// Iterations returns the number of coordinate descent passes of the last fit
func (s *SVRRegression) Iterations() int {
	return s.iterations
}

// Gamma returns the kernel width used by the last fit
func (s *SVRRegression) Gamma() float64 {
	return s.gamma
}

// SoftThreshold returns 0.0 if the value is less than or equal to the gamma input
func SoftThreshold(x, gamma float64) float64 {
	res := math.Max(0, math.Abs(x)-gamma)
	if math.Signbit(x) {
		return -res
	}
	return res
}

func allFinite(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
