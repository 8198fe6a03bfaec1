// Package deeprepresent composes a trainable feed-forward feature
// transform with a ridge-regression UCB head. The transform maps raw
// features to a reduced representation and is updated by an external
// gradient optimizer; the head's statistics follow the closed-form
// ridge update instead. The two update channels are coordinated by
// whoever drives training, never fused into one step.
package deeprepresent

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-linucb/ffnet"
	"github.com/n0madic/go-linucb/linucb"
)

// DeepRepresentLinearRegressionUCB is a LinUCB head fed by a
// feed-forward representation network.
//
// Example: raw features (dim=9) -> transform -> representation
// (dim=3) -> LinUCB -> ucb score.
type DeepRepresentLinearRegressionUCB struct {
	rawInputDim int
	net         *ffnet.Network
	head        *linucb.LinearRegressionUCB
}

// Output holds everything a training driver needs from one forward
// pass: the UCB scores plus the representation and point estimate the
// gradient optimizer consumes.
type Output struct {
	UCB    *mat.VecDense // one score per input row
	PredU  *mat.VecDense // point estimate on the representation
	MLPOut *mat.Dense    // transformed representation
}

type config struct {
	outputActivation string
	useLayerNorm     bool
	normalizeOutput  bool
	seed             int64
	l2Reg            float64
	ucbAlpha         float64
	predictUCB       bool
	network          *ffnet.Network
}

// Option configures a DeepRepresentLinearRegressionUCB.
type Option func(*config)

// WithOutputActivation sets the activation of the transform's last
// layer (default "linear").
func WithOutputActivation(name string) Option {
	return func(c *config) { c.outputActivation = name }
}

// WithLayerNorm enables layer normalization inside the transform.
func WithLayerNorm(enable bool) Option {
	return func(c *config) { c.useLayerNorm = enable }
}

// WithNormalizedOutput enables L2 normalization of the representation.
func WithNormalizedOutput(enable bool) Option {
	return func(c *config) { c.normalizeOutput = enable }
}

// WithSeed fixes the transform's weight initialization seed.
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed = seed }
}

// WithL2Regularization sets the ridge coefficient of the head.
func WithL2Regularization(lambda float64) Option {
	return func(c *config) { c.l2Reg = lambda }
}

// WithUCBAlpha sets the head's default exploration coefficient.
func WithUCBAlpha(alpha float64) Option {
	return func(c *config) { c.ucbAlpha = alpha }
}

// WithPredictUCB selects the prediction mode. Only UCB prediction is
// supported; false fails construction.
func WithPredictUCB(predictUCB bool) Option {
	return func(c *config) { c.predictUCB = predictUCB }
}

// WithNetwork injects a custom transform instead of building one from
// sizes and activations. Its dimensions must match the model's.
func WithNetwork(net *ffnet.Network) Option {
	return func(c *config) { c.network = net }
}

// New builds a deep-represent model. sizes and activations describe
// the hidden layers of the transform; the chain runs
// rawInputDim -> sizes... -> linucbInputDim.
func New(rawInputDim int, sizes []int, linucbInputDim int, activationNames []string, options ...Option) (*DeepRepresentLinearRegressionUCB, error) {
	if rawInputDim <= 0 {
		return nil, &linucb.ConfigError{Reason: fmt.Sprintf("raw input dimension must be positive, got %d", rawInputDim)}
	}
	if linucbInputDim <= 0 {
		return nil, &linucb.ConfigError{Reason: fmt.Sprintf("linucb input dimension must be positive, got %d", linucbInputDim)}
	}
	if len(sizes) != len(activationNames) {
		return nil, &linucb.ConfigError{
			Reason: fmt.Sprintf("the numbers of sizes and activations must match; got %d vs %d",
				len(sizes), len(activationNames)),
		}
	}

	cfg := config{
		outputActivation: "linear",
		l2Reg:            1.0,
		ucbAlpha:         1.0,
		predictUCB:       true,
		seed:             1,
	}
	for _, opt := range options {
		opt(&cfg)
	}

	if !cfg.predictUCB {
		return nil, &linucb.ConfigError{Reason: "only UCB prediction is supported"}
	}

	net := cfg.network
	if net == nil {
		chain := make([]int, 0, len(sizes)+2)
		chain = append(chain, rawInputDim)
		chain = append(chain, sizes...)
		chain = append(chain, linucbInputDim)

		acts := make([]string, 0, len(activationNames)+1)
		acts = append(acts, activationNames...)
		acts = append(acts, cfg.outputActivation)

		var err error
		net, err = ffnet.New(chain, acts,
			ffnet.WithLayerNorm(cfg.useLayerNorm),
			ffnet.WithNormalizeOutput(cfg.normalizeOutput),
			ffnet.WithSeed(cfg.seed),
		)
		if err != nil {
			return nil, err
		}
	} else {
		if net.InputDim() != rawInputDim {
			return nil, &linucb.ConfigError{
				Reason: fmt.Sprintf("custom network input dimension %d does not match raw input dimension %d",
					net.InputDim(), rawInputDim),
			}
		}
		if net.OutputDim() != linucbInputDim {
			return nil, &linucb.ConfigError{
				Reason: fmt.Sprintf("custom network output dimension %d does not match linucb input dimension %d",
					net.OutputDim(), linucbInputDim),
			}
		}
	}

	head, err := linucb.NewLinearRegressionUCB(linucbInputDim,
		linucb.WithL2Regularization(cfg.l2Reg),
		linucb.WithUCBAlpha(cfg.ucbAlpha),
	)
	if err != nil {
		return nil, err
	}

	return &DeepRepresentLinearRegressionUCB{
		rawInputDim: rawInputDim,
		net:         net,
		head:        head,
	}, nil
}

// RawInputDim returns the raw feature dimension.
func (d *DeepRepresentLinearRegressionUCB) RawInputDim() int {
	return d.rawInputDim
}

// Network returns the trainable transform; its layer parameters are
// the gradient-descended channel.
func (d *DeepRepresentLinearRegressionUCB) Network() *ffnet.Network {
	return d.net
}

// Head returns the ridge-regression head; its statistics are the
// closed-form channel.
func (d *DeepRepresentLinearRegressionUCB) Head() *linucb.LinearRegressionUCB {
	return d.head
}

// Forward passes raw features through the transform, then scores the
// representation with the UCB head. Stale head coefficients refresh
// lazily inside the head before scoring.
func (d *DeepRepresentLinearRegressionUCB) Forward(x *mat.Dense, alpha float64) (*Output, error) {
	if x == nil {
		return nil, &linucb.InputError{Expected: d.rawInputDim, Got: 0, What: "raw feature matrix"}
	}
	if _, cols := x.Dims(); cols != d.rawInputDim {
		return nil, &linucb.InputError{Expected: d.rawInputDim, Got: cols, What: "raw feature columns"}
	}

	mlpOut, err := d.net.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("feature transform: %w", err)
	}

	pred, err := d.head.Predict(mlpOut, alpha)
	if err != nil {
		return nil, fmt.Errorf("ucb head: %w", err)
	}

	return &Output{
		UCB:    pred.UCB,
		PredU:  pred.Mean,
		MLPOut: mlpOut,
	}, nil
}

// UpdateHead accumulates a batch of transformed representations into
// the head's sufficient statistics. This is the closed-form update
// channel; the transform's parameters are not touched.
func (d *DeepRepresentLinearRegressionUCB) UpdateHead(mlpOut *mat.Dense, y, weight *mat.VecDense) error {
	return d.head.Update(mlpOut, y, weight)
}

// Update transforms raw features and accumulates the result into the
// head. Convenience for drivers that do not reuse a forward pass.
func (d *DeepRepresentLinearRegressionUCB) Update(x *mat.Dense, y, weight *mat.VecDense) error {
	if x == nil {
		return &linucb.InputError{Expected: d.rawInputDim, Got: 0, What: "raw feature matrix"}
	}
	mlpOut, err := d.net.Forward(x)
	if err != nil {
		return fmt.Errorf("feature transform: %w", err)
	}
	return d.head.Update(mlpOut, y, weight)
}
