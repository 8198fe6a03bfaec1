package linucb

import (
	"encoding/gob"
	"errors"
	"io"
)

// State is the serializable snapshot of a LinearRegressionUCB.
// The cached inverse and coefficients are not stored: they are
// recomputed from (A, b) on load.
type State struct {
	Version  int       `gob:"version"`
	InputDim int       `gob:"input_dim"`
	L2Reg    float64   `gob:"l2_reg"`
	UCBAlpha float64   `gob:"ucb_alpha"`
	AData    []float64 `gob:"a_data"`
	BData    []float64 `gob:"b_data"`
}

const stateVersion = 1

// State captures the current model state.
func (l *LinearRegressionUCB) State() *State {
	s := &State{
		Version:  stateVersion,
		InputDim: l.inputDim,
		L2Reg:    l.l2Reg,
		UCBAlpha: l.ucbAlpha,
	}

	aRaw := l.A.RawMatrix()
	s.AData = make([]float64, len(aRaw.Data))
	copy(s.AData, aRaw.Data)

	bRaw := l.b.RawVector()
	s.BData = make([]float64, len(bRaw.Data))
	copy(s.BData, bRaw.Data)

	return s
}

// FromState reconstructs a model from a serialized snapshot. The
// coefficient cache starts stale, so the first score re-estimates.
func FromState(s *State) (*LinearRegressionUCB, error) {
	if s.Version != stateVersion {
		return nil, errors.New("unsupported state version")
	}

	l, err := NewLinearRegressionUCB(s.InputDim,
		WithL2Regularization(s.L2Reg),
		WithUCBAlpha(s.UCBAlpha),
	)
	if err != nil {
		return nil, err
	}

	if len(s.AData) != s.InputDim*s.InputDim {
		return nil, errors.New("invalid A data length")
	}
	if len(s.BData) != s.InputDim {
		return nil, errors.New("invalid b data length")
	}

	copy(l.A.RawMatrix().Data, s.AData)
	copy(l.b.RawVector().Data, s.BData)

	return l, nil
}

// Save serializes the model state to gob format.
func (l *LinearRegressionUCB) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(l.State())
}

// Load deserializes model state from gob format.
func Load(r io.Reader) (*LinearRegressionUCB, error) {
	var s State
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	return FromState(&s)
}
