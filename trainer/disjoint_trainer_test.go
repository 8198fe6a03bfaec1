package trainer

import (
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	disjointlinucb "github.com/n0madic/go-linucb/disjoint-linucb"
	"github.com/n0madic/go-linucb/linucb"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTrainer(t *testing.T, numArms, dim int, options ...linucb.Option) *DisjointLinUCBTrainer {
	t.Helper()
	scorer, err := disjointlinucb.New(numArms, dim, options...)
	require.NoError(t, err)
	tr, err := New(scorer, WithLogger(quietLogger()))
	require.NoError(t, err)
	return tr
}

func TestNewRequiresScorer(t *testing.T) {
	_, err := New(nil)
	var cfgErr *linucb.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestTrainingStepValidation(t *testing.T) {
	features := mat.NewDense(1, 2, []float64{1, 0})
	reward := mat.NewVecDense(1, []float64{1})

	tests := []struct {
		name  string
		batch []CBInput
	}{
		{
			name: "batch length below arm count",
			batch: []CBInput{
				{ContextArmFeatures: features, Reward: reward},
			},
		},
		{
			name: "batch length above arm count",
			batch: []CBInput{
				{ContextArmFeatures: features, Reward: reward},
				{ContextArmFeatures: features, Reward: reward},
				{ContextArmFeatures: features, Reward: reward},
			},
		},
		{
			name: "missing features",
			batch: []CBInput{
				{ContextArmFeatures: features, Reward: reward},
				{Reward: reward},
			},
		},
		{
			name: "missing reward",
			batch: []CBInput{
				{ContextArmFeatures: features, Reward: reward},
				{ContextArmFeatures: features},
			},
		},
		{
			name: "feature width mismatch",
			batch: []CBInput{
				{ContextArmFeatures: features, Reward: reward},
				{ContextArmFeatures: mat.NewDense(1, 3, nil), Reward: reward},
			},
		},
		{
			name: "reward length mismatch",
			batch: []CBInput{
				{ContextArmFeatures: features, Reward: reward},
				{ContextArmFeatures: features, Reward: mat.NewVecDense(2, nil)},
			},
		},
		{
			name: "weight length mismatch",
			batch: []CBInput{
				{ContextArmFeatures: features, Reward: reward},
				{ContextArmFeatures: features, Reward: reward, Weight: mat.NewVecDense(3, nil)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTrainer(t, 2, 2)

			err := tr.TrainingStep(tt.batch)
			var inputErr *linucb.InputError
			require.ErrorAs(t, err, &inputErr)

			// A rejected batch must leave every arm untouched, even the
			// arms whose sub-batches were individually valid.
			for arm := 0; arm < 2; arm++ {
				head, err := tr.Scorer().Arm(arm)
				require.NoError(t, err)
				state := head.State()
				for _, v := range state.AData {
					assert.Zero(t, v, "arm %d A mutated by rejected batch", arm)
				}
				for _, v := range state.BData {
					assert.Zero(t, v, "arm %d b mutated by rejected batch", arm)
				}
			}
		})
	}
}

func TestTrainingStepUpdatesEveryArm(t *testing.T) {
	tr := newTrainer(t, 2, 2, linucb.WithL2Regularization(1e-6))

	batch := []CBInput{
		{
			ContextArmFeatures: mat.NewDense(1, 2, []float64{1, 0}),
			Reward:             mat.NewVecDense(1, []float64{2}),
		},
		{
			ContextArmFeatures: mat.NewDense(1, 2, []float64{0, 1}),
			Reward:             mat.NewVecDense(1, []float64{3}),
		},
	}

	require.NoError(t, tr.TrainingStep(batch))
	require.NoError(t, tr.OnEpochEnd())

	s0, err := tr.Scorer().Score(0, mat.NewDense(1, 2, []float64{1, 0}), 0)
	require.NoError(t, err)
	assert.InDelta(t, 2, s0.AtVec(0), 1e-3)

	s1, err := tr.Scorer().Score(1, mat.NewDense(1, 2, []float64{0, 1}), 0)
	require.NoError(t, err)
	assert.InDelta(t, 3, s1.AtVec(0), 1e-3)
}

func TestWeightedObservations(t *testing.T) {
	tr := newTrainer(t, 1, 1, linucb.WithL2Regularization(1e-9))

	// One entry with weight 10 stands in for ten identical observations.
	weighted := []CBInput{{
		ContextArmFeatures: mat.NewDense(1, 1, []float64{1}),
		Reward:             mat.NewVecDense(1, []float64{2}),
		Weight:             mat.NewVecDense(1, []float64{10}),
	}}
	require.NoError(t, tr.TrainingStep(weighted))
	require.NoError(t, tr.OnEpochEnd())
	scoreWeighted, err := tr.Scorer().Score(0, mat.NewDense(1, 1, []float64{1}), 0)
	require.NoError(t, err)

	tr2 := newTrainer(t, 1, 1, linucb.WithL2Regularization(1e-9))
	repeated := []CBInput{{
		ContextArmFeatures: mat.NewDense(10, 1, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}),
		Reward:             mat.NewVecDense(10, []float64{2, 2, 2, 2, 2, 2, 2, 2, 2, 2}),
	}}
	require.NoError(t, tr2.TrainingStep(repeated))
	require.NoError(t, tr2.OnEpochEnd())
	scoreRepeated, err := tr2.Scorer().Score(0, mat.NewDense(1, 1, []float64{1}), 0)
	require.NoError(t, err)

	assert.InDelta(t, scoreRepeated.AtVec(0), scoreWeighted.AtVec(0), 1e-9)
}

// Multiple steps per epoch accumulate; the epoch-boundary estimation
// folds all of them into the coefficients at once.
func TestEpochLifecycle(t *testing.T) {
	tr := newTrainer(t, 1, 1, linucb.WithL2Regularization(1e-6))

	for step := 0; step < 5; step++ {
		batch := []CBInput{{
			ContextArmFeatures: mat.NewDense(1, 1, []float64{1}),
			Reward:             mat.NewVecDense(1, []float64{4}),
		}}
		require.NoError(t, tr.TrainingStep(batch))
	}
	require.NoError(t, tr.OnEpochEnd())

	score, err := tr.Scorer().Score(0, mat.NewDense(1, 1, []float64{1}), 0)
	require.NoError(t, err)
	require.False(t, math.IsNaN(score.AtVec(0)))
	assert.InDelta(t, 4, score.AtVec(0), 1e-3)
}
