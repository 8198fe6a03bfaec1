package disjointlinucb

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/n0madic/go-linucb/linucb"
)

// DisjointState is the serializable snapshot of a disjoint model.
type DisjointState struct {
	Version  int             `gob:"version"`
	NumArms  int             `gob:"num_arms"`
	InputDim int             `gob:"input_dim"`
	Arms     []*linucb.State `gob:"arms"`
}

const stateVersion = 1

// Save serializes all arms' state to gob format.
func (d *DisjointLinearRegressionUCB) Save(w io.Writer) error {
	state := DisjointState{
		Version:  stateVersion,
		NumArms:  d.numArms,
		InputDim: d.inputDim,
		Arms:     make([]*linucb.State, d.numArms),
	}
	for i, arm := range d.arms {
		state.Arms[i] = arm.State()
	}
	return gob.NewEncoder(w).Encode(state)
}

// Load deserializes a disjoint model from gob format.
func Load(r io.Reader) (*DisjointLinearRegressionUCB, error) {
	var state DisjointState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, err
	}
	if state.Version != stateVersion {
		return nil, errors.New("unsupported state version")
	}
	if len(state.Arms) != state.NumArms {
		return nil, errors.New("invalid arm state count")
	}

	arms := make([]*linucb.LinearRegressionUCB, state.NumArms)
	for i, armState := range state.Arms {
		arm, err := linucb.FromState(armState)
		if err != nil {
			return nil, fmt.Errorf("arm %d: %w", i, err)
		}
		if arm.InputDim() != state.InputDim {
			return nil, fmt.Errorf("arm %d: dimension %d does not match model dimension %d", i, arm.InputDim(), state.InputDim)
		}
		arms[i] = arm
	}

	return &DisjointLinearRegressionUCB{
		numArms:  state.NumArms,
		inputDim: state.InputDim,
		arms:     arms,
	}, nil
}
