package models

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	mat_ "github.com/aouyang1/go-stockforecaster/mat"
)

const DefaultHoldoutFraction = 0.1

var (
	ErrEmptyGrid       = errors.New("empty hyper-parameter grid")
	ErrInvalidHoldout  = errors.New("holdout fraction must be in [0, 1)")
	ErrNoViableModel   = errors.New("no candidate model could be fit")
	ErrNegativeWorkers = errors.New("negative parallelization")
)

// SVRAutoOptions represents input options to run the support vector regression with the best
// hyper-parameters found over a grid
type SVRAutoOptions struct {
	Kernel Kernel `json:"kernel" yaml:"kernel"`

	// Cs, Epsilons and Gammas form the grid. Every combination is a candidate. Gammas are ignored
	// for the linear kernel.
	Cs       []float64 `json:"cs" yaml:"cs"`
	Epsilons []float64 `json:"epsilons" yaml:"epsilons"`
	Gammas   []float64 `json:"gammas" yaml:"gammas"`

	Iterations   int     `json:"iterations" yaml:"iterations"`
	Tolerance    float64 `json:"tolerance" yaml:"tolerance"`
	FitIntercept bool    `json:"fit_intercept" yaml:"fit_intercept"`

	// HoldoutFraction is the trailing share of observations held out to score each candidate.
	// The split is chronological. Series too short to split are scored in-sample.
	HoldoutFraction float64 `json:"holdout_fraction" yaml:"holdout_fraction"`

	// Shuffle and Seed are passed to every candidate. Without Shuffle the coordinate descent is
	// cyclic and the search is deterministic.
	Shuffle bool   `json:"shuffle" yaml:"shuffle"`
	Seed    uint64 `json:"seed" yaml:"seed"`

	// Parallelization sets how many fits to run in parallel. More will increase memory and compute usage.
	Parallelization int `json:"parallelization" yaml:"parallelization"`
}

// Validate runs basic validation on SVR Auto options
func (s *SVRAutoOptions) Validate() (*SVRAutoOptions, error) {
	if s == nil {
		s = NewDefaultSVRAutoOptions()
	}

	kernel, err := s.Kernel.Validate()
	if err != nil {
		return nil, err
	}
	s.Kernel = kernel

	if len(s.Cs) == 0 || len(s.Epsilons) == 0 {
		return nil, ErrEmptyGrid
	}
	if s.Kernel == KernelRBF && len(s.Gammas) == 0 {
		return nil, ErrEmptyGrid
	}
	for _, c := range s.Cs {
		if c <= 0 {
			return nil, ErrNonPositiveC
		}
	}
	for _, e := range s.Epsilons {
		if e < 0 {
			return nil, ErrNegativeEpsilon
		}
	}
	for _, g := range s.Gammas {
		if g < 0 {
			return nil, ErrNegativeGamma
		}
	}
	if s.Iterations < 0 {
		return nil, ErrNegativeIterations
	}
	if s.Tolerance < 0 {
		return nil, ErrNegativeTolerance
	}
	if s.HoldoutFraction < 0 || s.HoldoutFraction >= 1 {
		return nil, ErrInvalidHoldout
	}
	if s.Parallelization < 0 {
		return nil, ErrNegativeWorkers
	}
	n := len(s.candidates())
	if s.Parallelization == 0 || s.Parallelization > n {
		s.Parallelization = n
	}
	return s, nil
}

// NewDefaultSVRAutoOptions returns a default set of SVR Auto Regression options
func NewDefaultSVRAutoOptions() *SVRAutoOptions {
	return &SVRAutoOptions{
		Kernel:          KernelRBF,
		Cs:              []float64{1, 10, 100},
		Epsilons:        []float64{0.01, 0.05, 0.1},
		Gammas:          []float64{0.1, 1, 10},
		Iterations:      DefaultIterations,
		Tolerance:       DefaultTolerance,
		FitIntercept:    true,
		HoldoutFraction: DefaultHoldoutFraction,
		Parallelization: 4,
	}
}

// candidates expands the grid in C, epsilon, gamma order
func (s *SVRAutoOptions) candidates() []*SVROptions {
	gammas := s.Gammas
	if s.Kernel == KernelLinear {
		gammas = []float64{0}
	}
	opts := make([]*SVROptions, 0, len(s.Cs)*len(s.Epsilons)*len(gammas))
	for _, c := range s.Cs {
		for _, eps := range s.Epsilons {
			for _, g := range gammas {
				opts = append(opts, &SVROptions{
					Kernel:       s.Kernel,
					C:            c,
					Epsilon:      eps,
					Gamma:        g,
					Iterations:   s.Iterations,
					Tolerance:    s.Tolerance,
					FitIntercept: s.FitIntercept,
					Shuffle:      s.Shuffle,
					Seed:         s.Seed,
				})
			}
		}
	}
	return opts
}

// SVRAutoRegression selects the SVR hyper-parameters with the lowest holdout mean squared error and
// refits that candidate on all observations. When the refit fails the next best candidate is
// refit instead.
type SVRAutoRegression struct {
	opt *SVRAutoOptions

	// newModel builds the model for one candidate
	newModel func(opt *SVROptions) (Model, error)

	scoreMu sync.Mutex
	scored  []scoredCandidate
	errs    []error

	bestScore float64
	bestOpt   *SVROptions
	bestModel Model
}

type scoredCandidate struct {
	idx int
	mse float64
}

// NewSVRAutoRegression initializes an SVR model ready for fitting using grid searched hyper-parameters
func NewSVRAutoRegression(opt *SVRAutoOptions) (*SVRAutoRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	return &SVRAutoRegression{
		opt:      opt,
		newModel: newSVRModel,
	}, nil
}

func newSVRModel(opt *SVROptions) (Model, error) {
	return NewSVRRegression(opt)
}

// Fit the model according to the given training data
func (s *SVRAutoRegression) Fit(x, y mat.Matrix) error {
	if s.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, _ := x.Dims()

	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	trainX, trainY, testX, testY, err := s.split(x, y)
	if err != nil {
		return err
	}

	s.bestScore = math.Inf(1)
	s.scored = nil
	s.errs = nil
	s.bestOpt = nil
	s.bestModel = nil

	candidates := s.opt.candidates()
	sem := make(chan struct{}, s.opt.Parallelization)
	var wg sync.WaitGroup
	for i, opt := range candidates {
		sem <- struct{}{}
		wg.Add(1)

		go s.runCandidate(i, opt, trainX, trainY, testX, testY, &wg, sem)
	}
	wg.Wait()

	if len(s.scored) == 0 {
		return fmt.Errorf("%d candidates failed, %w", len(candidates), errors.Join(append([]error{ErrNoViableModel}, s.errs...)...))
	}

	sort.Slice(s.scored, func(i, j int) bool {
		if s.scored[i].mse != s.scored[j].mse {
			return s.scored[i].mse < s.scored[j].mse
		}
		return s.scored[i].idx < s.scored[j].idx
	})

	refitErrs := make([]error, 0, len(s.scored))
	for _, sc := range s.scored {
		opt := *candidates[sc.idx]
		model, err := s.refit(&opt, x, y)
		if err != nil {
			slog.Debug("svr refit failed", "c", opt.C, "epsilon", opt.Epsilon, "gamma", opt.Gamma, "error", err.Error())
			refitErrs = append(refitErrs, err)
			continue
		}
		s.bestScore = sc.mse
		s.bestOpt = &opt
		s.bestModel = model
		return nil
	}
	return fmt.Errorf("unable to refit any of %d candidates on all observations, %w", len(s.scored), errors.Join(append([]error{ErrNoViableModel}, refitErrs...)...))
}

func (s *SVRAutoRegression) refit(opt *SVROptions, x, y mat.Matrix) (Model, error) {
	model, err := s.newModel(opt)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(x, y); err != nil {
		return nil, err
	}
	return model, nil
}

// split holds out the trailing observations for scoring. When the holdout would be empty or leave
// fewer than two training observations the full series is used for both.
func (s *SVRAutoRegression) split(x, y mat.Matrix) (mat.Matrix, mat.Matrix, mat.Matrix, mat.Matrix, error) {
	m, _ := x.Dims()
	holdout := int(float64(m) * s.opt.HoldoutFraction)
	train := m - holdout
	if holdout < 1 || train < 2 {
		return x, y, x, y, nil
	}

	rows := mat_.Rows(x)
	yArr := mat.Col(nil, 0, y)

	trainX, err := mat_.NewDenseFromArray(rows[:train])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	testX, err := mat_.NewDenseFromArray(rows[train:])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	trainY := mat.NewDense(train, 1, yArr[:train])
	testY := mat.NewDense(holdout, 1, yArr[train:])
	return trainX, trainY, testX, testY, nil
}

func (s *SVRAutoRegression) runCandidate(idx int, opt *SVROptions, trainX, trainY, testX, testY mat.Matrix, wg *sync.WaitGroup, sem chan struct{}) {
	defer func() {
		<-sem
		wg.Done()
	}()

	mse, err := s.scoreCandidate(opt, trainX, trainY, testX, testY)
	if err != nil {
		slog.Debug("svr candidate failed", "c", opt.C, "epsilon", opt.Epsilon, "gamma", opt.Gamma, "error", err.Error())
		s.scoreMu.Lock()
		s.errs = append(s.errs, err)
		s.scoreMu.Unlock()
		return
	}

	s.scoreMu.Lock()
	s.scored = append(s.scored, scoredCandidate{idx: idx, mse: mse})
	s.scoreMu.Unlock()
}

func (s *SVRAutoRegression) scoreCandidate(opt *SVROptions, trainX, trainY, testX, testY mat.Matrix) (float64, error) {
	model, err := s.newModel(opt)
	if err != nil {
		return 0, err
	}
	if err := model.Fit(trainX, trainY); err != nil {
		return 0, err
	}
	pred, err := model.Predict(testX)
	if err != nil {
		return 0, err
	}
	mse, err := MSE(pred, mat.Col(nil, 0, testY))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(mse) || math.IsInf(mse, 0) {
		return 0, ErrNonFinite
	}
	return mse, nil
}

// Predict using the best SVR model
func (s *SVRAutoRegression) Predict(x mat.Matrix) ([]float64, error) {
	if s.bestModel == nil {
		return nil, ErrUntrained
	}
	return s.bestModel.Predict(x)
}

// Score computes the coefficient of determination of the prediction
func (s *SVRAutoRegression) Score(x, y mat.Matrix) (float64, error) {
	if s.bestModel == nil {
		return 0.0, ErrUntrained
	}
	return s.bestModel.Score(x, y)
}

// Intercept returns the intercept of the best model
func (s *SVRAutoRegression) Intercept() float64 {
	if s.bestModel == nil {
		return 0.0
	}
	return s.bestModel.Intercept()
}

// Coef returns the dual coefficients of the best model
func (s *SVRAutoRegression) Coef() []float64 {
	if s.bestModel == nil {
		return nil
	}
	return s.bestModel.Coef()
}

// BestOptions returns the selected hyper-parameters or nil if the model has not been fit
func (s *SVRAutoRegression) BestOptions() *SVROptions {
	if s.bestOpt == nil {
		return nil
	}
	opt := *s.bestOpt
	return &opt
}

// HoldoutMSE returns the holdout mean squared error of the selected candidate
func (s *SVRAutoRegression) HoldoutMSE() float64 {
	return s.bestScore
}
