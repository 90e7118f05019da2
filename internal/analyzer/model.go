// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package analyzer

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"
)

// LinearModelFormat identifies the bundled model file format.
const LinearModelFormat = "guardian-linear/v1"

// DefaultLabel names threats that no category claims.
const DefaultLabel = "Anomalous Traffic"

// Output is the decoded result of one forward pass.
type Output struct {
	Logit      float64
	Confidence float64 // sigmoid(Logit), in [0, 1]
	Label      string
}

// Model scores a token sequence. Implementations may keep internal state and
// are only ever called from one goroutine at a time.
//
// scratch has at least len(ids) elements and may be overwritten.
type Model interface {
	Forward(ids []int, scratch []float64) (Output, error)
	MaxInputLength() int
	VocabSize() int
}

// LinearModel is a bag-of-tokens logistic scorer: every token contributes its
// weight to a single logit, and the labelled category whose tokens contributed
// the most names the threat.
type LinearModel struct {
	bias         float64
	weights      []float64
	maxInput     int
	categories   []category
	defaultLabel string
}

type category struct {
	label  string
	tokens map[int]struct{}
}

type linearModelFile struct {
	Format         string            `json:"format"`
	VocabSize      int               `json:"vocab_size"`
	MaxInputLength int               `json:"max_input_length"`
	Bias           float64           `json:"bias"`
	Weights        map[int]float64   `json:"weights"`
	DefaultLabel   string            `json:"default_label"`
	Categories     []categoryFile    `json:"categories"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type categoryFile struct {
	Label  string `json:"label"`
	Tokens []int  `json:"tokens"`
}

// LoadLinearModel reads a model file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	m, err := ParseLinearModel(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return m, nil
}

// ParseLinearModel decodes model JSON.
func ParseLinearModel(data []byte) (*LinearModel, error) {
	var f linearModelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if f.Format != LinearModelFormat {
		return nil, fmt.Errorf("unsupported model format %q, want %q", f.Format, LinearModelFormat)
	}
	if f.VocabSize <= 0 {
		return nil, errors.New("model vocab_size must be positive")
	}
	if f.MaxInputLength <= 0 {
		return nil, errors.New("model max_input_length must be positive")
	}

	m := &LinearModel{
		bias:         f.Bias,
		weights:      make([]float64, f.VocabSize),
		maxInput:     f.MaxInputLength,
		defaultLabel: f.DefaultLabel,
	}
	if m.defaultLabel == "" {
		m.defaultLabel = DefaultLabel
	}
	for id, w := range f.Weights {
		if id < 0 || id >= f.VocabSize {
			return nil, fmt.Errorf("weight for token %d outside vocabulary of %d", id, f.VocabSize)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight for token %d is not finite", id)
		}
		m.weights[id] = w
	}
	for _, c := range f.Categories {
		if c.Label == "" {
			return nil, errors.New("model category without label")
		}
		cat := category{label: c.Label, tokens: make(map[int]struct{}, len(c.Tokens))}
		for _, id := range c.Tokens {
			cat.tokens[id] = struct{}{}
		}
		m.categories = append(m.categories, cat)
	}
	return m, nil
}

func (m *LinearModel) MaxInputLength() int { return m.maxInput }

func (m *LinearModel) VocabSize() int { return len(m.weights) }

// Forward computes per-token activations into scratch, sums them into the
// logit and picks the category with the largest positive contribution.
func (m *LinearModel) Forward(ids []int, scratch []float64) (Output, error) {
	if len(scratch) < len(ids) {
		return Output{}, fmt.Errorf("scratch buffer of %d for %d tokens", len(scratch), len(ids))
	}

	logit := m.bias
	for i, id := range ids {
		if id < 0 || id >= len(m.weights) {
			return Output{}, fmt.Errorf("token id %d outside vocabulary of %d", id, len(m.weights))
		}
		scratch[i] = m.weights[id]
		logit += scratch[i]
	}
	if math.IsNaN(logit) || math.IsInf(logit, 0) {
		return Output{}, errors.New("logit is not finite")
	}

	label, best := m.defaultLabel, 0.0
	for _, c := range m.categories {
		var contribution float64
		for i, id := range ids {
			if _, ok := c.tokens[id]; ok {
				contribution += scratch[i]
			}
		}
		if contribution > best {
			label, best = c.label, contribution
		}
	}

	return Output{Logit: logit, Confidence: sigmoid(logit), Label: label}, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
