package split

import (
	"errors"
	"fmt"
	"io"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/nn"
	"mlp_lib/utils"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
)

// Server evaluates z = W·x + b for the first transition on ciphertexts.
type Server struct {
	weights [][]float64
	biases  []float64
	kit     *ckkswrapper.ServerKit
	proto   *Protocol
}

// Rotations lists every rotation the server performs for a transition from
// inputSize to outputSize neurons.
func Rotations(inputSize, outputSize int) []int {
	rots := ckkswrapper.TreeSumRotations(inputSize)
	for j := 1; j < outputSize; j++ {
		rots = append(rots, -j)
	}
	return rots
}

// NewServer keeps a copy of net's first transition only.
func NewServer(net *nn.Network, proto *Protocol) (*Server, error) {
	if net.NumLayers() < 2 {
		return nil, nn.ErrUninitialized
	}
	return &Server{
		weights: net.Weights()[0],
		biases:  net.Biases()[0],
		proto:   proto,
	}, nil
}

// InputSize is the width of the encrypted input.
func (s *Server) InputSize() int { return len(s.weights[0]) }

// OutputSize is the number of pre-activations returned.
func (s *Server) OutputSize() int { return len(s.biases) }

// SetKit installs evaluation keys directly, bypassing the setup message.
func (s *Server) SetKit(kit *ckkswrapper.ServerKit) {
	s.kit = kit
}

// Serve answers forward requests until the client sends MsgDone or the
// stream ends. Failures on a single sample are reported to the client and
// do not stop the loop.
func (s *Server) Serve() error {
	if s.kit == nil {
		if err := s.setup(); err != nil {
			if sendErr := s.proto.SendError(err); sendErr != nil {
				return errors.Join(err, sendErr)
			}
			return err
		}
	}
	served := 0
	for {
		payload, err := s.proto.ReceiveForward(MsgForwardInput)
		if errors.Is(err, io.EOF) {
			utils.Logf("SERVER", "done after %d samples", served)
			return nil
		}
		if err != nil {
			return err
		}

		out, err := s.handle(payload)
		if err != nil {
			utils.Logf("SERVER", "sample %d: %v", payload.SampleID, err)
			if err := s.proto.SendError(err); err != nil {
				return err
			}
			continue
		}
		if err := s.proto.SendForward(MsgForwardOutput, payload.SampleID, out, 0); err != nil {
			return err
		}
		served++
	}
}

func (s *Server) setup() error {
	msg, err := s.proto.Receive()
	if err != nil {
		return err
	}
	if msg.Type != MsgSetup {
		return fmt.Errorf("expected %s message, got %s", MsgSetup, msg.Type)
	}
	payload, ok := msg.Payload.(SetupPayload)
	if !ok {
		return fmt.Errorf("invalid setup payload type %T", msg.Payload)
	}
	if payload.InputSize != s.InputSize() {
		return &nn.ShapeError{What: "input", Index: -1, Want: s.InputSize(), Got: payload.InputSize}
	}
	kit, err := ckkswrapper.ImportServerKit(&payload.Kit)
	if err != nil {
		return err
	}
	s.kit = kit
	utils.Logf("SERVER", "keys received (%d galois keys)", len(payload.Kit.GaloisKeys))
	return nil
}

func (s *Server) handle(payload *ForwardPayload) ([]byte, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(payload.Ciphertext); err != nil {
		return nil, fmt.Errorf("unmarshal ciphertext: %w", err)
	}
	out, err := s.Evaluate(ct)
	if err != nil {
		return nil, err
	}
	return out.MarshalBinary()
}

// Evaluate returns a ciphertext whose slot j holds Σ_k W[j][k]·x_k + b_j.
// It consumes two levels.
func (s *Server) Evaluate(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	if s.kit == nil {
		return nil, fmt.Errorf("evaluate: no evaluation keys")
	}
	if !ckkswrapper.HasLevels(ct, 2) {
		return nil, fmt.Errorf("evaluate: ciphertext at level %d, need 2", ct.Level())
	}
	eval := s.kit.Evaluator
	scale := s.kit.Params.DefaultScale()
	slots := s.kit.Params.MaxSlots()
	n := s.InputSize()

	var acc *rlwe.Ciphertext
	for j, row := range s.weights {
		wpt, err := s.kit.EncodeAt(row, ct.Level(), scale)
		if err != nil {
			return nil, err
		}
		prod, err := s.kit.MulRescale(ct, wpt)
		if err != nil {
			return nil, fmt.Errorf("neuron %d: %w", j, err)
		}
		dot, err := s.kit.TreeSum(prod, n)
		if err != nil {
			return nil, fmt.Errorf("neuron %d: %w", j, err)
		}
		if j > 0 {
			if dot, err = eval.RotateNew(dot, slots-j); err != nil {
				return nil, fmt.Errorf("neuron %d: %w", j, err)
			}
		}

		oneHot := make([]float64, j+1)
		oneHot[j] = 1
		mpt, err := s.kit.EncodeAt(oneHot, dot.Level(), scale)
		if err != nil {
			return nil, err
		}
		masked, err := s.kit.MulRescale(dot, mpt)
		if err != nil {
			return nil, fmt.Errorf("neuron %d: %w", j, err)
		}

		if acc == nil {
			acc = masked
		} else if err := eval.Add(acc, masked, acc); err != nil {
			return nil, fmt.Errorf("neuron %d: %w", j, err)
		}
	}

	bpt, err := s.kit.EncodeAt(s.biases, acc.Level(), acc.Scale)
	if err != nil {
		return nil, err
	}
	if err := eval.Add(acc, bpt, acc); err != nil {
		return nil, fmt.Errorf("bias: %w", err)
	}
	return acc, nil
}
