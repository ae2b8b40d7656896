package split

import (
	"fmt"
	"time"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/nn"
	"mlp_lib/utils"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"gonum.org/v1/gonum/floats"
)

// Client encrypts inputs, lets the server compute the first transition and
// finishes the forward pass in plaintext.
type Client struct {
	he     *ckkswrapper.HeContext
	proto  *Protocol
	input  int
	hidden int
	tail   *nn.Network // nil when the network has a single transition
	next   int

	// Stats, when set, accumulates encryption, round-trip and decryption
	// times.
	Stats *utils.TimingStats
}

// NewClient keeps everything after net's first transition.
func NewClient(he *ckkswrapper.HeContext, net *nn.Network, proto *Protocol) (*Client, error) {
	shape := net.Shape()
	if len(shape) < 2 {
		return nil, nn.ErrUninitialized
	}
	if shape[0] > he.Params.MaxSlots() || shape[1] > he.Params.MaxSlots() {
		return nil, &nn.ConfigError{
			Field:  "architecture",
			Value:  utils.FormatArchitecture(shape),
			Reason: fmt.Sprintf("layer wider than %d slots", he.Params.MaxSlots()),
		}
	}
	c := &Client{he: he, proto: proto, input: shape[0], hidden: shape[1]}
	if len(shape) > 2 {
		tail, err := nn.FromParameters(shape[1:], net.Weights()[1:], net.Biases()[1:])
		if err != nil {
			return nil, err
		}
		c.tail = tail
	}
	return c, nil
}

// ServerKit generates the evaluation keys the server needs.
func (c *Client) ServerKit() (*ckkswrapper.ServerKit, error) {
	return c.he.GenServerKit(Rotations(c.input, c.hidden))
}

// Setup sends the evaluation keys to the server.
func (c *Client) Setup() error {
	kit, err := c.ServerKit()
	if err != nil {
		return err
	}
	data, err := kit.Export()
	if err != nil {
		return err
	}
	utils.Logf("CLIENT", "sending %d galois keys", len(data.GaloisKeys))
	return c.proto.SendSetup(data, c.input)
}

// FeedForward runs one sample through the split network.
func (c *Client) FeedForward(input []float64) ([]float64, error) {
	if len(input) != c.input {
		return nil, &nn.ShapeError{What: "input", Index: -1, Want: c.input, Got: len(input)}
	}
	start := time.Now()
	ct, err := c.he.EncryptVector(input)
	if err != nil {
		return nil, err
	}
	b, err := ct.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if c.Stats != nil {
		c.Stats.EncryptionTime += time.Since(start)
	}
	id := c.next
	c.next++
	start = time.Now()
	if err := c.proto.SendForward(MsgForwardInput, id, b, ct.Level()); err != nil {
		return nil, err
	}
	resp, err := c.proto.ReceiveForward(MsgForwardOutput)
	if err != nil {
		return nil, fmt.Errorf("sample %d: %w", id, err)
	}
	if resp.SampleID != id {
		return nil, fmt.Errorf("sample %d: server answered for sample %d", id, resp.SampleID)
	}
	if c.Stats != nil {
		c.Stats.ServerTime += time.Since(start)
	}

	start = time.Now()
	out := new(rlwe.Ciphertext)
	if err := out.UnmarshalBinary(resp.Ciphertext); err != nil {
		return nil, fmt.Errorf("unmarshal ciphertext: %w", err)
	}
	z, err := c.he.DecryptVector(out, c.hidden)
	if err != nil {
		return nil, err
	}
	if c.Stats != nil {
		c.Stats.DecryptionTime += time.Since(start)
	}

	var act nn.Sigmoid
	for j := range z {
		z[j] = act.Activate(0, j, z[j])
	}
	if c.tail == nil {
		return z, nil
	}
	return c.tail.FeedForward(z)
}

// Predict returns the index of the strongest output.
func (c *Client) Predict(input []float64) (int, error) {
	out, err := c.FeedForward(input)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(out), nil
}

// Close tells the server to stop.
func (c *Client) Close() error {
	return c.proto.SendDone()
}

