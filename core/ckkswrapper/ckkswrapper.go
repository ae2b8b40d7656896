// Package ckkswrapper bundles the CKKS parameters, keys and codecs used for
// encrypted inference. The key holder keeps a HeContext; the evaluating
// party only ever sees a ServerKit.
package ckkswrapper

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// ParamSpec is the compact, serialisable form of the CKKS parameters.
type ParamSpec struct {
	LogN            int
	LogQ            []int
	LogP            []int
	LogDefaultScale int
}

// DefaultParamSpec leaves two levels: one for the weight product, one for
// the slot mask.
func DefaultParamSpec() ParamSpec {
	return ParamSpec{
		LogN:            13,
		LogQ:            []int{55, 40, 40},
		LogP:            []int{61},
		LogDefaultScale: 40,
	}
}

// Parameters instantiates the spec.
func (s ParamSpec) Parameters() (hefloat.Parameters, error) {
	params, err := hefloat.NewParametersFromLiteral(hefloat.ParametersLiteral{
		LogN:            s.LogN,
		LogQ:            s.LogQ,
		LogP:            s.LogP,
		LogDefaultScale: s.LogDefaultScale,
	})
	if err != nil {
		return hefloat.Parameters{}, fmt.Errorf("ckks parameters: %w", err)
	}
	return params, nil
}

// HeContext holds everything the secret key owner needs.
type HeContext struct {
	Spec      ParamSpec
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	kgen *rlwe.KeyGenerator
	sk   *rlwe.SecretKey
}

// NewHeContext builds a context with DefaultParamSpec.
func NewHeContext() (*HeContext, error) {
	return NewHeContextWithSpec(DefaultParamSpec())
}

// NewHeContextWithSpec generates a fresh key pair for spec.
func NewHeContextWithSpec(spec ParamSpec) (*HeContext, error) {
	params, err := spec.Parameters()
	if err != nil {
		return nil, err
	}
	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Spec:      spec,
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Encryptor: hefloat.NewEncryptor(params, pk),
		Decryptor: hefloat.NewDecryptor(params, sk),
		kgen:      kgen,
		sk:        sk,
	}, nil
}

// EncryptVector places values in slots 0..len-1 at the top level.
func (h *HeContext) EncryptVector(values []float64) (*rlwe.Ciphertext, error) {
	slots := h.Params.MaxSlots()
	if len(values) > slots {
		return nil, fmt.Errorf("encrypt: %d values exceed %d slots", len(values), slots)
	}
	vec := make([]float64, slots)
	copy(vec, values)

	pt := hefloat.NewPlaintext(h.Params, h.Params.MaxLevel())
	if err := h.Encoder.Encode(vec, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	ct, err := h.Encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ct, nil
}

// DecryptVector returns the first n slots of ct.
func (h *HeContext) DecryptVector(ct *rlwe.Ciphertext, n int) ([]float64, error) {
	slots := h.Params.MaxSlots()
	if n > slots {
		return nil, fmt.Errorf("decrypt: %d values exceed %d slots", n, slots)
	}
	pt := h.Decryptor.DecryptNew(ct)
	vec := make([]float64, slots)
	if err := h.Encoder.Decode(pt, vec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return vec[:n], nil
}

// GenServerKit generates the Galois keys for the given rotations and wraps
// them with an evaluator. The secret key does not leave the context.
func (h *HeContext) GenServerKit(rotations []int) (*ServerKit, error) {
	keys := h.kgen.GenGaloisKeysNew(h.galoisElements(rotations), h.sk)
	return newServerKit(h.Spec, h.Params, keys), nil
}

func (h *HeContext) galoisElements(rotations []int) []uint64 {
	slots := h.Params.MaxSlots()
	seen := make(map[uint64]bool, len(rotations))
	var els []uint64
	for _, k := range rotations {
		k = ((k % slots) + slots) % slots
		if k == 0 {
			continue
		}
		el := h.Params.GaloisElement(k)
		if !seen[el] {
			seen[el] = true
			els = append(els, el)
		}
	}
	return els
}

// HasLevels reports whether ct can still absorb the given number of
// rescales.
func HasLevels(ct *rlwe.Ciphertext, need int) bool {
	return ct.Level() >= need
}
