package linucb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LinearRegressionUCB is a ridge-regression contextual bandit head.
// It accumulates the sufficient statistics
//
//	A += xᵀ·(x∘weight)    (d x d)
//	b += xᵀ·(y∘weight)    (d)
//
// and derives the ridge solution coefs = (A + λI)⁻¹·b on demand.
// The derived coefficients and inverse are cached together with a
// snapshot of the A matrix they were computed from; a score request
// against a mutated A triggers a lazy recomputation, so scores always
// reflect the latest accumulated statistics.
//
// The model only supports producing upper-confidence-bound scores:
//
//	ucb = x·coefs + alpha·sqrt(xᵢᵀ·A⁻¹·xᵢ)
//
// Requesting a point-estimate-only mode is a configuration error.
type LinearRegressionUCB struct {
	inputDim   int
	l2Reg      float64 // ridge regularization λ added to A's diagonal before inversion
	ucbAlpha   float64 // default exploration coefficient
	predictUCB bool

	A *mat.Dense    // sufficient statistics, d x d
	b *mat.VecDense // sufficient statistics, d

	coefs          *mat.VecDense // cached (A + λI)⁻¹·b
	invA           *mat.Dense    // cached (A + λI)⁻¹
	coefsValidForA *mat.Dense    // snapshot of A the cache was computed from
}

// ConfigError reports an invalid model configuration. It is returned
// at construction time, never raised lazily after partial computation.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// InputError reports an input that does not match the model's shape
// requirements. Validation happens before any state mutation, so a
// returned InputError guarantees the statistics are untouched.
type InputError struct {
	Expected int
	Got      int
	What     string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s must have size %d, got %d", e.What, e.Expected, e.Got)
}

// Option configures a LinearRegressionUCB.
type Option func(*LinearRegressionUCB)

// WithL2Regularization sets the ridge coefficient λ added to the
// diagonal of A before inversion.
func WithL2Regularization(lambda float64) Option {
	return func(l *LinearRegressionUCB) {
		l.l2Reg = lambda
	}
}

// WithUCBAlpha sets the default exploration coefficient used by ScoreDefault.
func WithUCBAlpha(alpha float64) Option {
	return func(l *LinearRegressionUCB) {
		l.ucbAlpha = alpha
	}
}

// WithPredictUCB selects the prediction mode. Only UCB prediction is
// supported; passing false makes the constructor fail.
func WithPredictUCB(predictUCB bool) Option {
	return func(l *LinearRegressionUCB) {
		l.predictUCB = predictUCB
	}
}

// NewLinearRegressionUCB creates a ridge-regression UCB head for
// inputDim-dimensional features.
func NewLinearRegressionUCB(inputDim int, options ...Option) (*LinearRegressionUCB, error) {
	if inputDim <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("input dimension must be positive, got %d", inputDim)}
	}

	l := &LinearRegressionUCB{
		inputDim:   inputDim,
		l2Reg:      1.0,
		ucbAlpha:   1.0,
		predictUCB: true,
	}
	for _, opt := range options {
		opt(l)
	}

	if !l.predictUCB {
		return nil, &ConfigError{Reason: "point-estimate-only prediction is not supported, the model always produces UCB scores"}
	}
	if l.l2Reg <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("l2 regularization must be positive, got %g", l.l2Reg)}
	}

	l.A = mat.NewDense(inputDim, inputDim, nil)
	l.b = mat.NewVecDense(inputDim, nil)
	l.coefs = mat.NewVecDense(inputDim, nil)
	l.invA = mat.NewDense(inputDim, inputDim, nil)
	l.coefsValidForA = mat.NewDense(inputDim, inputDim, nil)

	// The zero A differs from no snapshot at all; force the first
	// score to estimate by poisoning the snapshot diagonal.
	for i := 0; i < inputDim; i++ {
		l.coefsValidForA.Set(i, i, math.Inf(1))
	}

	return l, nil
}

// InputDim returns the configured feature dimension.
func (l *LinearRegressionUCB) InputDim() int {
	return l.inputDim
}

// UCBAlpha returns the default exploration coefficient.
func (l *LinearRegressionUCB) UCBAlpha() float64 {
	return l.ucbAlpha
}

// validateBatch checks x against the model dimension and y/weight
// against the batch size. Called before any mutation or scoring.
func (l *LinearRegressionUCB) validateBatch(x *mat.Dense, y, weight *mat.VecDense) (n int, err error) {
	if x == nil {
		return 0, &InputError{Expected: l.inputDim, Got: 0, What: "feature matrix"}
	}
	n, d := x.Dims()
	if d != l.inputDim {
		return 0, &InputError{Expected: l.inputDim, Got: d, What: "feature columns"}
	}
	if y != nil && y.Len() != n {
		return 0, &InputError{Expected: n, Got: y.Len(), What: "target vector"}
	}
	if weight != nil && weight.Len() != n {
		return 0, &InputError{Expected: n, Got: weight.Len(), What: "weight vector"}
	}
	return n, nil
}

// Update accumulates a batch of observations into the sufficient
// statistics. x is (n, d); y and weight are length-n column vectors.
// A nil weight defaults to all-ones. A nil y accumulates only A, so
// the uncertainty shrinks without moving the point estimate.
func (l *LinearRegressionUCB) Update(x *mat.Dense, y, weight *mat.VecDense) error {
	n, err := l.validateBatch(x, y, weight)
	if err != nil {
		return err
	}

	// xw = x with each row scaled by its weight
	xw := mat.NewDense(n, l.inputDim, nil)
	if weight == nil {
		xw.Copy(x)
	} else {
		for i := 0; i < n; i++ {
			w := weight.AtVec(i)
			for j := 0; j < l.inputDim; j++ {
				xw.Set(i, j, x.At(i, j)*w)
			}
		}
	}

	var dA mat.Dense
	dA.Mul(x.T(), xw)
	l.A.Add(l.A, &dA)

	if y != nil {
		yw := mat.NewVecDense(n, nil)
		if weight == nil {
			yw.CopyVec(y)
		} else {
			yw.MulElemVec(y, weight)
		}
		var db mat.VecDense
		db.MulVec(x.T(), yw)
		l.b.AddVec(l.b, &db)
	}

	return nil
}

// EstimateCoefficients inverts the ridge-regularized A and refreshes
// the cached coefficients. The inversion target is A + λI, which is
// symmetric positive definite for any accumulated A, so it is always
// invertible.
func (l *LinearRegressionUCB) EstimateCoefficients() error {
	reg := mat.NewDense(l.inputDim, l.inputDim, nil)
	reg.Copy(l.A)
	for i := 0; i < l.inputDim; i++ {
		reg.Set(i, i, reg.At(i, i)+l.l2Reg)
	}

	if err := l.invA.Inverse(reg); err != nil {
		return fmt.Errorf("invert regularized statistics matrix: %w", err)
	}
	l.coefs.MulVec(l.invA, l.b)
	l.coefsValidForA.Copy(l.A)
	return nil
}

// coefsStale reports whether A changed since the last estimation.
// Comparison is exact: any accumulated observation invalidates the cache.
func (l *LinearRegressionUCB) coefsStale() bool {
	return !mat.Equal(l.A, l.coefsValidForA)
}

// Prediction holds the decomposed output of a UCB scoring pass.
type Prediction struct {
	UCB   *mat.VecDense // Mean + Bonus, one score per input row
	Mean  *mat.VecDense // point estimate x·coefs
	Bonus *mat.VecDense // alpha-scaled uncertainty term
}

// Predict scores a batch of feature rows and returns the UCB together
// with its mean and bonus components. Stale coefficients are
// recomputed first.
func (l *LinearRegressionUCB) Predict(x *mat.Dense, alpha float64) (*Prediction, error) {
	n, err := l.validateBatch(x, nil, nil)
	if err != nil {
		return nil, err
	}

	if l.coefsStale() {
		if err := l.EstimateCoefficients(); err != nil {
			return nil, err
		}
	}

	mean := mat.NewVecDense(n, nil)
	mean.MulVec(x, l.coefs)

	bonus := batchQuadraticForm(x, l.invA)
	for i := 0; i < n; i++ {
		bonus.SetVec(i, alpha*math.Sqrt(bonus.AtVec(i)))
	}

	ucb := mat.NewVecDense(n, nil)
	ucb.AddVec(mean, bonus)

	return &Prediction{UCB: ucb, Mean: mean, Bonus: bonus}, nil
}

// Score returns one UCB score per row of x using the given
// exploration coefficient. With alpha=0 the scores reduce to the
// ridge point estimates.
func (l *LinearRegressionUCB) Score(x *mat.Dense, alpha float64) (*mat.VecDense, error) {
	pred, err := l.Predict(x, alpha)
	if err != nil {
		return nil, err
	}
	return pred.UCB, nil
}

// ScoreDefault scores with the configured default alpha.
func (l *LinearRegressionUCB) ScoreDefault(x *mat.Dense) (*mat.VecDense, error) {
	return l.Score(x, l.ucbAlpha)
}

// batchQuadraticForm computes xᵢᵀ·m·xᵢ for each row xᵢ of x.
// Values are clamped at zero: floating-point drift can make the
// quadratic form of a near-singular inverse slightly negative.
func batchQuadraticForm(x, m *mat.Dense) *mat.VecDense {
	n, _ := x.Dims()
	var xm mat.Dense
	xm.Mul(x, m)

	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		q := floats.Dot(x.RawRowView(i), xm.RawRowView(i))
		if q < 0 {
			q = 0
		}
		out.SetVec(i, q)
	}
	return out
}
