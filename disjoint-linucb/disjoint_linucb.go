// Package disjointlinucb implements the disjoint variant of the
// ridge-regression UCB bandit: one independent LinearRegressionUCB
// head per arm, with no sharing of features or statistics across
// arms. Coefficient estimation for all arms happens in one explicit
// pass, typically at epoch boundaries, while statistic accumulation
// is cheap and per-step.
package disjointlinucb

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-linucb/linucb"
)

// DisjointLinearRegressionUCB holds numArms independent ridge
// regression heads, indexed 0..numArms-1.
type DisjointLinearRegressionUCB struct {
	numArms  int
	inputDim int
	arms     []*linucb.LinearRegressionUCB
}

// New creates a disjoint model with numArms independent heads over
// inputDim-dimensional features. Options apply to every head.
func New(numArms, inputDim int, options ...linucb.Option) (*DisjointLinearRegressionUCB, error) {
	if numArms <= 0 {
		return nil, &linucb.ConfigError{Reason: fmt.Sprintf("number of arms must be positive, got %d", numArms)}
	}

	arms := make([]*linucb.LinearRegressionUCB, numArms)
	for i := range arms {
		arm, err := linucb.NewLinearRegressionUCB(inputDim, options...)
		if err != nil {
			return nil, err
		}
		arms[i] = arm
	}

	return &DisjointLinearRegressionUCB{
		numArms:  numArms,
		inputDim: inputDim,
		arms:     arms,
	}, nil
}

// NumArms returns the number of arms.
func (d *DisjointLinearRegressionUCB) NumArms() int {
	return d.numArms
}

// InputDim returns the per-arm feature dimension.
func (d *DisjointLinearRegressionUCB) InputDim() int {
	return d.inputDim
}

func (d *DisjointLinearRegressionUCB) checkArm(armIdx int) error {
	if armIdx < 0 || armIdx >= d.numArms {
		return &linucb.InputError{Expected: d.numArms - 1, Got: armIdx, What: "arm index (max)"}
	}
	return nil
}

// Update accumulates a batch of observations into the statistics of a
// single arm. Other arms are untouched.
func (d *DisjointLinearRegressionUCB) Update(armIdx int, x *mat.Dense, y, weight *mat.VecDense) error {
	if err := d.checkArm(armIdx); err != nil {
		return err
	}
	if err := d.arms[armIdx].Update(x, y, weight); err != nil {
		return fmt.Errorf("arm %d: %w", armIdx, err)
	}
	return nil
}

// EstimateCoefficients refreshes the derived coefficients and
// inverses of every arm in one pass.
func (d *DisjointLinearRegressionUCB) EstimateCoefficients() error {
	for i, arm := range d.arms {
		if err := arm.EstimateCoefficients(); err != nil {
			return fmt.Errorf("arm %d: %w", i, err)
		}
	}
	return nil
}

// Score returns one UCB score per row of x for the given arm. Stale
// arm coefficients refresh lazily, so a score issued between epoch
// boundaries still reflects that arm's latest statistics.
func (d *DisjointLinearRegressionUCB) Score(armIdx int, x *mat.Dense, alpha float64) (*mat.VecDense, error) {
	if err := d.checkArm(armIdx); err != nil {
		return nil, err
	}
	scores, err := d.arms[armIdx].Score(x, alpha)
	if err != nil {
		return nil, fmt.Errorf("arm %d: %w", armIdx, err)
	}
	return scores, nil
}

// Predict returns the decomposed UCB prediction for one arm.
func (d *DisjointLinearRegressionUCB) Predict(armIdx int, x *mat.Dense, alpha float64) (*linucb.Prediction, error) {
	if err := d.checkArm(armIdx); err != nil {
		return nil, err
	}
	pred, err := d.arms[armIdx].Predict(x, alpha)
	if err != nil {
		return nil, fmt.Errorf("arm %d: %w", armIdx, err)
	}
	return pred, nil
}

// Arm returns the head for a single arm, mainly for inspection and
// persistence by callers that manage arms directly.
func (d *DisjointLinearRegressionUCB) Arm(armIdx int) (*linucb.LinearRegressionUCB, error) {
	if err := d.checkArm(armIdx); err != nil {
		return nil, err
	}
	return d.arms[armIdx], nil
}
