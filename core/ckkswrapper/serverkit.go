package ckkswrapper

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// ServerKit is the public half of a HeContext: parameters, an encoder for
// plaintext operands and an evaluator holding rotation keys.
type ServerKit struct {
	Spec      ParamSpec
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Evaluator *hefloat.Evaluator

	galois []*rlwe.GaloisKey
}

func newServerKit(spec ParamSpec, params hefloat.Parameters, keys []*rlwe.GaloisKey) *ServerKit {
	return &ServerKit{
		Spec:      spec,
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Evaluator: hefloat.NewEvaluator(params, rlwe.NewMemEvaluationKeySet(nil, keys...)),
		galois:    keys,
	}
}

// KitData is the wire form of a ServerKit.
type KitData struct {
	Spec       ParamSpec
	GaloisKeys [][]byte
}

// Export serialises the kit's parameters and rotation keys.
func (k *ServerKit) Export() (*KitData, error) {
	d := &KitData{Spec: k.Spec, GaloisKeys: make([][]byte, len(k.galois))}
	for i, gk := range k.galois {
		b, err := gk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal galois key %d: %w", i, err)
		}
		d.GaloisKeys[i] = b
	}
	return d, nil
}

// ImportServerKit rebuilds a ServerKit from its wire form.
func ImportServerKit(d *KitData) (*ServerKit, error) {
	if d == nil {
		return nil, fmt.Errorf("import server kit: no data")
	}
	params, err := d.Spec.Parameters()
	if err != nil {
		return nil, err
	}
	keys := make([]*rlwe.GaloisKey, len(d.GaloisKeys))
	for i, b := range d.GaloisKeys {
		gk := new(rlwe.GaloisKey)
		if err := gk.UnmarshalBinary(b); err != nil {
			return nil, fmt.Errorf("unmarshal galois key %d: %w", i, err)
		}
		keys[i] = gk
	}
	return newServerKit(d.Spec, params, keys), nil
}

// EncodeAt encodes values into a plaintext at the given level and scale.
func (k *ServerKit) EncodeAt(values []float64, level int, scale rlwe.Scale) (*rlwe.Plaintext, error) {
	vec := make([]float64, k.Params.MaxSlots())
	copy(vec, values)
	pt := hefloat.NewPlaintext(k.Params, level)
	pt.Scale = scale
	if err := k.Encoder.Encode(vec, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return pt, nil
}

// MulRescale multiplies ct by a plaintext and drops one level.
func (k *ServerKit) MulRescale(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	tmp, err := k.Evaluator.MulNew(ct, pt)
	if err != nil {
		return nil, err
	}
	out := rlwe.NewCiphertext(k.Params, tmp.Degree(), tmp.Level()-1)
	if err := k.Evaluator.Rescale(tmp, out); err != nil {
		return nil, err
	}
	return out, nil
}

// TreeSum folds slots 0..width-1 into slot 0 with log2(width) rotations.
// The slots past width must be zero.
func (k *ServerKit) TreeSum(ct *rlwe.Ciphertext, width int) (*rlwe.Ciphertext, error) {
	for step := 1; step < width; step *= 2 {
		rot, err := k.Evaluator.RotateNew(ct, step)
		if err != nil {
			return nil, err
		}
		ct, err = k.Evaluator.AddNew(ct, rot)
		if err != nil {
			return nil, err
		}
	}
	return ct, nil
}

// TreeSumRotations lists the rotations TreeSum needs for width.
func TreeSumRotations(width int) []int {
	var rots []int
	for step := 1; step < width; step *= 2 {
		rots = append(rots, step)
	}
	return rots
}
