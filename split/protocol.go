// Package split runs the first layer transition of a network on encrypted
// inputs. The client keeps the secret key and the rest of the network; the
// server keeps the first transition's weights and biases.
package split

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"mlp_lib/core/ckkswrapper"
)

func init() {
	gob.Register(SetupPayload{})
	gob.Register(ForwardPayload{})
}

// MessageType tags a protocol message.
type MessageType int

const (
	MsgSetup MessageType = iota
	MsgForwardInput
	MsgForwardOutput
	MsgDone
	MsgError
)

func (t MessageType) String() string {
	switch t {
	case MsgSetup:
		return "setup"
	case MsgForwardInput:
		return "forward-input"
	case MsgForwardOutput:
		return "forward-output"
	case MsgDone:
		return "done"
	case MsgError:
		return "error"
	}
	return fmt.Sprintf("message(%d)", int(t))
}

// ErrRemote wraps an error reported by the peer.
var ErrRemote = errors.New("remote error")

// Message is one protocol frame.
type Message struct {
	Type    MessageType
	Payload interface{}
}

// SetupPayload carries the evaluation keys and the expected input width.
type SetupPayload struct {
	Kit       ckkswrapper.KitData
	InputSize int
}

// ForwardPayload carries one serialised ciphertext.
type ForwardPayload struct {
	SampleID   int
	Ciphertext []byte
	Level      int
}

// Protocol encodes messages with gob over any stream pair.
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler. Either side may be nil when
// the handler only sends or only receives.
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	if p.encoder == nil {
		return fmt.Errorf("send %s: protocol has no writer", msg.Type)
	}
	return p.encoder.Encode(msg)
}

// Receive receives a message. A MsgError frame is returned as an error
// wrapping ErrRemote.
func (p *Protocol) Receive() (*Message, error) {
	if p.decoder == nil {
		return nil, fmt.Errorf("receive: protocol has no reader")
	}
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	if msg.Type == MsgError {
		return nil, fmt.Errorf("%w: %v", ErrRemote, msg.Payload)
	}
	return &msg, nil
}

// SendSetup sends the server kit.
func (p *Protocol) SendSetup(kit *ckkswrapper.KitData, inputSize int) error {
	return p.Send(&Message{Type: MsgSetup, Payload: SetupPayload{Kit: *kit, InputSize: inputSize}})
}

// SendForward sends a ciphertext in the given direction.
func (p *Protocol) SendForward(t MessageType, id int, ctBytes []byte, level int) error {
	return p.Send(&Message{
		Type: t,
		Payload: ForwardPayload{
			SampleID:   id,
			Ciphertext: ctBytes,
			Level:      level,
		},
	})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{Type: MsgError, Payload: err.Error()})
}

// ReceiveForward receives a ciphertext frame of type want. MsgDone yields
// io.EOF.
func (p *Protocol) ReceiveForward(want MessageType) (*ForwardPayload, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Type == MsgDone {
		return nil, io.EOF
	}
	if msg.Type != want {
		return nil, fmt.Errorf("expected %s message, got %s", want, msg.Type)
	}
	payload, ok := msg.Payload.(ForwardPayload)
	if !ok {
		return nil, fmt.Errorf("invalid forward payload type %T", msg.Payload)
	}
	return &payload, nil
}
