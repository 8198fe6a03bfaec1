// Package reward provides a synthetic reward network for sequence
// models: a feed-forward net predicting one reward per state-action
// step, and the valid-step mask that selects which trailing steps of
// each sequence contribute to the aggregate reward.
package reward

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-linucb/ffnet"
)

// GenMask builds a (batchSize, seqLen) mask selecting the last
// validStep[i] steps of row i:
//
//	GenMask([1 2 3], 3, 4) = [0 0 0 1; 0 0 1 1; 0 1 1 1]
func GenMask(validStep []int, batchSize, seqLen int) (*mat.Dense, error) {
	if len(validStep) != batchSize {
		return nil, fmt.Errorf("valid step length %d does not match batch size %d", len(validStep), batchSize)
	}
	mask := mat.NewDense(batchSize, seqLen, nil)
	for i, vs := range validStep {
		if vs < 1 || vs > seqLen {
			return nil, fmt.Errorf("valid step %d out of range [1, %d] at row %d", vs, seqLen, i)
		}
		for j := seqLen - vs; j < seqLen; j++ {
			mask.Set(i, j, 1)
		}
	}
	return mask, nil
}

// SingleStepSyntheticRewardNet predicts one scalar reward per
// state-action pair through a feed-forward net over the concatenated
// features.
type SingleStepSyntheticRewardNet struct {
	stateDim  int
	actionDim int
	fc        *ffnet.Network
}

// NewSingleStep builds the reward net. sizes and activations describe
// the hidden layers; lastLayerActivation caps the single-output layer.
func NewSingleStep(stateDim, actionDim int, sizes []int, activationNames []string, lastLayerActivation string, options ...ffnet.Option) (*SingleStepSyntheticRewardNet, error) {
	if stateDim <= 0 || actionDim <= 0 {
		return nil, &ffnet.ConfigError{Reason: fmt.Sprintf("state and action dimensions must be positive, got %d and %d", stateDim, actionDim)}
	}
	if len(sizes) != len(activationNames) {
		return nil, &ffnet.ConfigError{
			Reason: fmt.Sprintf("the numbers of sizes and activations must match; got %d vs %d",
				len(sizes), len(activationNames)),
		}
	}

	chain := make([]int, 0, len(sizes)+2)
	chain = append(chain, stateDim+actionDim)
	chain = append(chain, sizes...)
	chain = append(chain, 1)

	acts := make([]string, 0, len(activationNames)+1)
	acts = append(acts, activationNames...)
	acts = append(acts, lastLayerActivation)

	fc, err := ffnet.New(chain, acts, options...)
	if err != nil {
		return nil, err
	}

	return &SingleStepSyntheticRewardNet{
		stateDim:  stateDim,
		actionDim: actionDim,
		fc:        fc,
	}, nil
}

// Network exposes the underlying feed-forward net.
func (s *SingleStepSyntheticRewardNet) Network() *ffnet.Network {
	return s.fc
}

// Forward predicts one reward per row of the state/action batch.
func (s *SingleStepSyntheticRewardNet) Forward(state, action *mat.Dense) (*mat.VecDense, error) {
	if state == nil || action == nil {
		return nil, fmt.Errorf("state and action must be non-nil")
	}
	n, sd := state.Dims()
	an, ad := action.Dims()
	if n != an {
		return nil, fmt.Errorf("state batch %d does not match action batch %d", n, an)
	}
	if sd != s.stateDim {
		return nil, fmt.Errorf("state has %d columns, want %d", sd, s.stateDim)
	}
	if ad != s.actionDim {
		return nil, fmt.Errorf("action has %d columns, want %d", ad, s.actionDim)
	}

	cat := mat.NewDense(n, sd+ad, nil)
	cat.Slice(0, n, 0, sd).(*mat.Dense).Copy(state)
	cat.Slice(0, n, sd, sd+ad).(*mat.Dense).Copy(action)

	out, err := s.fc.Forward(cat)
	if err != nil {
		return nil, err
	}

	rewards := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rewards.SetVec(i, out.At(i, 0))
	}
	return rewards, nil
}

// ForwardSequence predicts per-step rewards for a sequence batch and
// sums the steps selected by the valid-step mask, giving one
// cumulative reward per sequence. states[t] and actions[t] hold the
// whole batch at step t.
func (s *SingleStepSyntheticRewardNet) ForwardSequence(states, actions []*mat.Dense, validStep []int) (*mat.VecDense, error) {
	seqLen := len(states)
	if seqLen == 0 || len(actions) != seqLen {
		return nil, fmt.Errorf("state sequence length %d does not match action sequence length %d", seqLen, len(actions))
	}
	batchSize, _ := states[0].Dims()

	mask, err := GenMask(validStep, batchSize, seqLen)
	if err != nil {
		return nil, err
	}

	total := mat.NewVecDense(batchSize, nil)
	for t := 0; t < seqLen; t++ {
		if n, _ := states[t].Dims(); n != batchSize {
			return nil, fmt.Errorf("step %d: batch size %d does not match %d", t, n, batchSize)
		}
		stepRewards, err := s.Forward(states[t], actions[t])
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", t, err)
		}
		for i := 0; i < batchSize; i++ {
			total.SetVec(i, total.AtVec(i)+mask.At(i, t)*stepRewards.AtVec(i))
		}
	}
	return total, nil
}
