// Package trainer drives the closed-form updates of a disjoint
// LinUCB scorer. Each training step consumes one sub-batch per arm
// and accumulates sufficient statistics; the expensive coefficient
// estimation runs once per epoch, not per step, trading staleness
// between epoch boundaries for not inverting matrices on every
// update.
package trainer

import (
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	disjointlinucb "github.com/n0madic/go-linucb/disjoint-linucb"
	"github.com/n0madic/go-linucb/linucb"
)

// CBInput is one arm's sub-batch of contextual bandit data.
type CBInput struct {
	ContextArmFeatures *mat.Dense    // (batch, dim), required
	Reward             *mat.VecDense // (batch), required for training
	Weight             *mat.VecDense // (batch), nil defaults to all-ones
}

// DisjointLinUCBTrainer updates a DisjointLinearRegressionUCB scorer:
// per-step statistic accumulation, per-epoch coefficient estimation.
type DisjointLinUCBTrainer struct {
	scorer  *disjointlinucb.DisjointLinearRegressionUCB
	numArms int

	log    *logrus.Entry
	steps  uint64
	epochs uint64
}

// Option configures a DisjointLinUCBTrainer.
type Option func(*DisjointLinUCBTrainer)

// WithLogger routes trainer logging to the given logger.
func WithLogger(l *logrus.Logger) Option {
	return func(t *DisjointLinUCBTrainer) {
		t.log = l.WithField("component", "disjoint_linucb_trainer")
	}
}

// New creates a trainer for the given scorer.
func New(scorer *disjointlinucb.DisjointLinearRegressionUCB, options ...Option) (*DisjointLinUCBTrainer, error) {
	if scorer == nil {
		return nil, &linucb.ConfigError{Reason: "trainer requires a DisjointLinearRegressionUCB scorer"}
	}

	t := &DisjointLinUCBTrainer{
		scorer:  scorer,
		numArms: scorer.NumArms(),
		log:     logrus.StandardLogger().WithField("component", "disjoint_linucb_trainer"),
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// NumArms returns the arm count the trainer expects per batch.
func (t *DisjointLinUCBTrainer) NumArms() int {
	return t.numArms
}

// Scorer returns the trained scorer.
func (t *DisjointLinUCBTrainer) Scorer() *disjointlinucb.DisjointLinearRegressionUCB {
	return t.scorer
}

// checkInput validates a full batch before any arm is touched, so a
// failed validation leaves every arm's statistics intact.
func (t *DisjointLinUCBTrainer) checkInput(batch []CBInput) error {
	if len(batch) != t.numArms {
		return &linucb.InputError{Expected: t.numArms, Got: len(batch), What: "batch (one sub-batch per arm)"}
	}
	dim := t.scorer.InputDim()
	for _, sub := range batch {
		if sub.ContextArmFeatures == nil {
			return &linucb.InputError{Expected: dim, Got: 0, What: "arm sub-batch features"}
		}
		n, d := sub.ContextArmFeatures.Dims()
		if d != dim {
			return &linucb.InputError{Expected: dim, Got: d, What: "arm sub-batch feature columns"}
		}
		if sub.Reward == nil {
			return &linucb.InputError{Expected: n, Got: 0, What: "arm sub-batch reward"}
		}
		if sub.Reward.Len() != n {
			return &linucb.InputError{Expected: n, Got: sub.Reward.Len(), What: "arm sub-batch reward"}
		}
		if sub.Weight != nil && sub.Weight.Len() != n {
			return &linucb.InputError{Expected: n, Got: sub.Weight.Len(), What: "arm sub-batch weight"}
		}
	}
	return nil
}

// TrainingStep accumulates one sub-batch per arm into the scorer's
// statistics. Coefficients are not re-estimated here; they refresh at
// the epoch boundary or lazily on the next score.
func (t *DisjointLinUCBTrainer) TrainingStep(batch []CBInput) error {
	if err := t.checkInput(batch); err != nil {
		return err
	}

	for armIdx := 0; armIdx < t.numArms; armIdx++ {
		sub := batch[armIdx]
		if err := t.scorer.Update(armIdx, sub.ContextArmFeatures, sub.Reward, sub.Weight); err != nil {
			return err
		}
	}

	t.steps++
	t.log.WithFields(logrus.Fields{
		"step": t.steps,
		"arms": t.numArms,
	}).Debug("accumulated statistics")
	return nil
}

// OnEpochEnd re-estimates the coefficients of every arm. This is the
// explicit, infrequent batch recomputation.
func (t *DisjointLinUCBTrainer) OnEpochEnd() error {
	if err := t.scorer.EstimateCoefficients(); err != nil {
		t.log.WithError(err).Error("coefficient estimation failed")
		return err
	}

	t.epochs++
	t.log.WithFields(logrus.Fields{
		"epoch": t.epochs,
		"steps": t.steps,
	}).Info("estimated coefficients for all arms")
	return nil
}
