package deeprepresent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-linucb/ffnet"
	"github.com/n0madic/go-linucb/linucb"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name        string
		rawDim      int
		sizes       []int
		linucbDim   int
		activations []string
		options     []Option
		wantErr     string
	}{
		{
			name:        "valid",
			rawDim:      9,
			sizes:       []int{6},
			linucbDim:   3,
			activations: []string{"relu"},
		},
		{
			name:        "valid no hidden layers",
			rawDim:      4,
			sizes:       nil,
			linucbDim:   2,
			activations: nil,
		},
		{
			name:        "non-positive raw dimension",
			rawDim:      0,
			sizes:       []int{6},
			linucbDim:   3,
			activations: []string{"relu"},
			wantErr:     "raw input dimension",
		},
		{
			name:        "non-positive linucb dimension",
			rawDim:      9,
			sizes:       []int{6},
			linucbDim:   -1,
			activations: []string{"relu"},
			wantErr:     "linucb input dimension",
		},
		{
			name:        "sizes and activations mismatch",
			rawDim:      9,
			sizes:       []int{6, 4},
			linucbDim:   3,
			activations: []string{"relu"},
			wantErr:     "must match",
		},
		{
			name:        "point-estimate-only mode rejected",
			rawDim:      9,
			sizes:       []int{6},
			linucbDim:   3,
			activations: []string{"relu"},
			options:     []Option{WithPredictUCB(false)},
			wantErr:     "only UCB prediction",
		},
		{
			name:        "unknown activation",
			rawDim:      9,
			sizes:       []int{6},
			linucbDim:   3,
			activations: []string{"gelu"},
			wantErr:     "unknown activation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.rawDim, tt.sizes, tt.linucbDim, tt.activations, tt.options...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rawDim, d.RawInputDim())
			assert.Equal(t, tt.linucbDim, d.Head().InputDim())
			assert.Equal(t, tt.rawDim, d.Network().InputDim())
			assert.Equal(t, tt.linucbDim, d.Network().OutputDim())
		})
	}
}

func TestCustomNetworkDimensionCheck(t *testing.T) {
	net, err := ffnet.New([]int{9, 3}, []string{"linear"})
	require.NoError(t, err)

	_, err = New(9, nil, 3, nil, WithNetwork(net))
	require.NoError(t, err)

	_, err = New(8, nil, 3, nil, WithNetwork(net))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input dimension")

	_, err = New(9, nil, 2, nil, WithNetwork(net))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output dimension")
}

func TestForwardOutputs(t *testing.T) {
	d, err := New(5, []int{4}, 3, []string{"relu"}, WithSeed(42))
	require.NoError(t, err)

	x := mat.NewDense(2, 5, []float64{
		1, 0.5, -1, 2, 0,
		0, 1, 1, -0.5, 2,
	})

	out, err := d.Forward(x, 1.0)
	require.NoError(t, err)

	require.Equal(t, 2, out.UCB.Len())
	require.Equal(t, 2, out.PredU.Len())
	r, c := out.MLPOut.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)

	// The representation and point estimate feed the external
	// optimizer, so they must be consistent with the head's own view.
	pred, err := d.Head().Predict(out.MLPOut, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, pred.Mean.AtVec(0), out.PredU.AtVec(0), 1e-12)
	assert.InDelta(t, pred.UCB.AtVec(0), out.UCB.AtVec(0), 1e-12)

	// UCB >= point estimate for non-negative alpha.
	for i := 0; i < 2; i++ {
		assert.GreaterOrEqual(t, out.UCB.AtVec(i), out.PredU.AtVec(i))
	}
}

func TestForwardRejectsWrongWidth(t *testing.T) {
	d, err := New(5, []int{4}, 3, []string{"relu"})
	require.NoError(t, err)

	_, err = d.Forward(mat.NewDense(1, 4, nil), 1.0)
	var inputErr *linucb.InputError
	require.ErrorAs(t, err, &inputErr)

	_, err = d.Forward(nil, 1.0)
	require.ErrorAs(t, err, &inputErr)
}

// The closed-form channel moves the head and the next forward pass
// picks the refreshed coefficients up lazily.
func TestHeadUpdateRefreshesScores(t *testing.T) {
	d, err := New(4, nil, 2, nil, WithSeed(1), WithL2Regularization(1e-6))
	require.NoError(t, err)

	x := mat.NewDense(1, 4, []float64{1, 2, 0.5, -1})

	out0, err := d.Forward(x, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, out0.PredU.AtVec(0), 1e-9, "untrained head should predict zero")

	// Pin the representation to a fixed target through the head.
	target := 2.5
	for i := 0; i < 50; i++ {
		require.NoError(t, d.UpdateHead(out0.MLPOut, mat.NewVecDense(1, []float64{target}), nil))
	}

	out1, err := d.Forward(x, 0)
	require.NoError(t, err)
	assert.InDelta(t, target, out1.PredU.AtVec(0), 1e-2)

	// Uncertainty along the observed representation shrinks as
	// evidence accumulates.
	outA, err := d.Forward(x, 1.0)
	require.NoError(t, err)
	bonusBefore := outA.UCB.AtVec(0) - outA.PredU.AtVec(0)
	for i := 0; i < 200; i++ {
		require.NoError(t, d.UpdateHead(out0.MLPOut, mat.NewVecDense(1, []float64{target}), nil))
	}
	outB, err := d.Forward(x, 1.0)
	require.NoError(t, err)
	bonusAfter := outB.UCB.AtVec(0) - outB.PredU.AtVec(0)
	assert.Less(t, bonusAfter, bonusBefore)
	assert.False(t, math.Signbit(bonusAfter), "bonus must stay non-negative")
}

func TestUpdateConvenienceMatchesUpdateHead(t *testing.T) {
	dA, err := New(4, nil, 2, nil, WithSeed(9))
	require.NoError(t, err)
	dB, err := New(4, nil, 2, nil, WithSeed(9))
	require.NoError(t, err)

	x := mat.NewDense(2, 4, []float64{1, 0, 1, 0, 0, 1, 0, 1})
	y := mat.NewVecDense(2, []float64{1, -1})

	require.NoError(t, dA.Update(x, y, nil))

	mlpOut, err := dB.Network().Forward(x)
	require.NoError(t, err)
	require.NoError(t, dB.UpdateHead(mlpOut, y, nil))

	probe := mat.NewDense(1, 4, []float64{0.5, 0.5, -0.5, 1})
	sA, err := dA.Forward(probe, 1.0)
	require.NoError(t, err)
	sB, err := dB.Forward(probe, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, sB.UCB.AtVec(0), sA.UCB.AtVec(0), 1e-12)
}
