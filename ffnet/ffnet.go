// Package ffnet builds small feed-forward networks on gonum matrices.
// Networks are configuration-driven: a chain of layer sizes, one
// activation name per transition, and optional layer normalization.
// The forward pass is batch-oriented and the layer parameters are
// exported, so an external optimizer can update them between passes.
package ffnet

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ConfigError reports an invalid network configuration, detected at
// construction.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid network configuration: %s", e.Reason)
}

type activationFunc func(float64) float64

var activations = map[string]activationFunc{
	"linear":     func(v float64) float64 { return v },
	"identity":   func(v float64) float64 { return v },
	"relu":       func(v float64) float64 { return math.Max(0, v) },
	"leaky_relu": func(v float64) float64 { return math.Max(0.01*v, v) },
	"sigmoid":    func(v float64) float64 { return 1 / (1 + math.Exp(-v)) },
	"tanh":       math.Tanh,
}

// Layer is one linear transform plus activation. W and B are exported
// so external optimizers can mutate them in place.
type Layer struct {
	W          *mat.Dense    // outDim x inDim
	B          *mat.VecDense // outDim
	Activation string

	activate  activationFunc
	layerNorm bool
}

// Network is a composed chain of layers.
type Network struct {
	inputDim        int
	outputDim       int
	layers          []*Layer
	normalizeOutput bool
}

// Option configures a Network.
type Option func(*networkConfig)

type networkConfig struct {
	useLayerNorm    bool
	normalizeOutput bool
	seed            int64
}

// WithLayerNorm enables per-row normalization of hidden layer
// pre-activations.
func WithLayerNorm(enable bool) Option {
	return func(c *networkConfig) {
		c.useLayerNorm = enable
	}
}

// WithNormalizeOutput enables L2 normalization of the output rows.
func WithNormalizeOutput(enable bool) Option {
	return func(c *networkConfig) {
		c.normalizeOutput = enable
	}
}

// WithSeed fixes the weight initialization seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(c *networkConfig) {
		c.seed = seed
	}
}

// New builds a network from a full size chain (input size first,
// output size last) and one activation name per transition.
func New(sizes []int, activationNames []string, options ...Option) (*Network, error) {
	if len(sizes) < 2 {
		return nil, &ConfigError{Reason: fmt.Sprintf("need at least input and output sizes, got %d", len(sizes))}
	}
	if len(activationNames) != len(sizes)-1 {
		return nil, &ConfigError{
			Reason: fmt.Sprintf("the numbers of sizes and activations must match; got %d layer transitions vs %d activations",
				len(sizes)-1, len(activationNames)),
		}
	}
	for i, size := range sizes {
		if size <= 0 {
			return nil, &ConfigError{Reason: fmt.Sprintf("layer size %d must be positive, got %d", i, size)}
		}
	}

	cfg := networkConfig{seed: 1}
	for _, opt := range options {
		opt(&cfg)
	}
	rng := rand.New(rand.NewSource(cfg.seed))

	layers := make([]*Layer, len(sizes)-1)
	for i := range layers {
		in, out := sizes[i], sizes[i+1]
		name := activationNames[i]
		fn, ok := activations[name]
		if !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("unknown activation %q", name)}
		}

		layers[i] = &Layer{
			W:          xavierInit(rng, out, in),
			B:          mat.NewVecDense(out, nil),
			Activation: name,
			activate:   fn,
			// layer norm applies to hidden transitions only
			layerNorm: cfg.useLayerNorm && i < len(layers)-1,
		}
	}

	return &Network{
		inputDim:        sizes[0],
		outputDim:       sizes[len(sizes)-1],
		layers:          layers,
		normalizeOutput: cfg.normalizeOutput,
	}, nil
}

// xavierInit draws uniform weights scaled for the layer fan.
func xavierInit(rng *rand.Rand, out, in int) *mat.Dense {
	limit := math.Sqrt(6.0 / float64(in+out))
	w := mat.NewDense(out, in, nil)
	for i := 0; i < out; i++ {
		for j := 0; j < in; j++ {
			w.Set(i, j, (2*rng.Float64()-1)*limit)
		}
	}
	return w
}

// InputDim returns the expected feature dimension.
func (n *Network) InputDim() int {
	return n.inputDim
}

// OutputDim returns the representation dimension.
func (n *Network) OutputDim() int {
	return n.outputDim
}

// Layers exposes the parameter chain for external optimizers.
func (n *Network) Layers() []*Layer {
	return n.layers
}

// Forward runs a batch (rows are samples) through the network.
func (n *Network) Forward(x *mat.Dense) (*mat.Dense, error) {
	if x == nil {
		return nil, &ConfigError{Reason: "nil input"}
	}
	rows, cols := x.Dims()
	if cols != n.inputDim {
		return nil, fmt.Errorf("input has %d columns, network expects %d", cols, n.inputDim)
	}

	h := x
	for _, layer := range n.layers {
		out, _ := layer.W.Dims()
		next := mat.NewDense(rows, out, nil)
		next.Mul(h, layer.W.T())
		for i := 0; i < rows; i++ {
			row := next.RawRowView(i)
			for j := 0; j < out; j++ {
				row[j] += layer.B.AtVec(j)
			}
			if layer.layerNorm {
				normalizeRow(row)
			}
			for j := 0; j < out; j++ {
				row[j] = layer.activate(row[j])
			}
		}
		h = next
	}

	if n.normalizeOutput {
		for i := 0; i < rows; i++ {
			row := h.RawRowView(i)
			norm := floats.Norm(row, 2)
			if norm > 1e-12 {
				floats.Scale(1/norm, row)
			}
		}
	}

	return h, nil
}

// normalizeRow shifts a row to zero mean and unit variance.
func normalizeRow(row []float64) {
	mean := floats.Sum(row) / float64(len(row))
	variance := 0.0
	for _, v := range row {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(row))
	scale := 1 / math.Sqrt(variance+1e-8)
	for i, v := range row {
		row[i] = (v - mean) * scale
	}
}
