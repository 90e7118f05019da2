// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package analyzer

import (
	"fmt"
	"net/netip"

	"github.com/tomtom215/guardian/internal/summary"
)

// MessagePrefix starts every threat message.
const MessagePrefix = "THREAT_DETECTED: "

// DefaultThreshold is the confidence at or above which a summary is a threat.
const DefaultThreshold = 0.5

// VerdictKind distinguishes the two verdicts.
type VerdictKind int

const (
	KindSafe VerdictKind = iota
	KindThreat
)

func (k VerdictKind) String() string {
	if k == KindThreat {
		return "threat"
	}
	return "safe"
}

// Verdict is the analyzer's decision for one summary. Message, Severity and
// Source are only meaningful for threats; Source may be the zero Addr when
// the packet could not be attributed.
type Verdict struct {
	Kind     VerdictKind
	Message  string
	Severity float64
	Source   netip.Addr
}

// Safe is the benign verdict.
func Safe() Verdict { return Verdict{Kind: KindSafe} }

// Threat builds a threat verdict.
func Threat(message string, severity float64, source netip.Addr) Verdict {
	return Verdict{Kind: KindThreat, Message: message, Severity: severity, Source: source}
}

func (v Verdict) IsThreat() bool { return v.Kind == KindThreat }

// Scorer produces a verdict for a summary. Implementations need not be safe for
// concurrent use; Worker serializes all calls.
type Scorer interface {
	Analyze(s summary.TrafficSummary) (Verdict, error)
}

// Options tune a loaded Analyzer.
type Options struct {
	// Threshold in [0, 1]; zero selects DefaultThreshold.
	Threshold float64

	// MaxInputLength caps the token sequence below the model's own limit when positive.
	MaxInputLength int
}

// Analyzer owns a model and tokenizer plus the scratch buffers of one forward
// pass. It is not safe for concurrent use.
type Analyzer struct {
	model     Model
	tokenizer *Tokenizer
	threshold float64
	maxTokens int

	ids     []int
	scratch []float64
}

// Load reads the model and tokenizer files. Any failure is a *LoadError.
func Load(modelPath, tokenizerPath string, opts Options) (*Analyzer, error) {
	tok, err := LoadTokenizer(tokenizerPath)
	if err != nil {
		return nil, err
	}
	model, err := LoadLinearModel(modelPath)
	if err != nil {
		return nil, err
	}
	if tok.VocabSize() > model.VocabSize() {
		return nil, &LoadError{
			Path: modelPath,
			Err:  fmt.Errorf("tokenizer vocabulary of %d exceeds model vocabulary of %d", tok.VocabSize(), model.VocabSize()),
		}
	}
	return New(model, tok, opts), nil
}

// New assembles an Analyzer from already loaded parts.
func New(model Model, tok *Tokenizer, opts Options) *Analyzer {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	maxTokens := model.MaxInputLength()
	if l := tok.MaxLength(); l > 0 && l < maxTokens {
		maxTokens = l
	}
	if opts.MaxInputLength > 0 && opts.MaxInputLength < maxTokens {
		maxTokens = opts.MaxInputLength
	}

	return &Analyzer{
		model:     model,
		tokenizer: tok,
		threshold: threshold,
		maxTokens: maxTokens,
		ids:       make([]int, 0, maxTokens),
		scratch:   make([]float64, maxTokens),
	}
}

// Threshold returns the alert confidence threshold.
func (a *Analyzer) Threshold() float64 { return a.threshold }

// MaxTokens returns the bound applied to every token sequence.
func (a *Analyzer) MaxTokens() int { return a.maxTokens }

// Analyze tokenizes s, runs one forward pass and applies the threshold.
// Oversized summaries are truncated, never rejected.
func (a *Analyzer) Analyze(s summary.TrafficSummary) (Verdict, error) {
	a.ids = a.tokenizer.Encode(s.Text, a.ids[:0], a.maxTokens)

	out, err := a.model.Forward(a.ids, a.scratch)
	if err != nil {
		return Verdict{}, &InferenceError{Summary: s.Text, Err: err}
	}
	if out.Confidence < a.threshold {
		return Safe(), nil
	}
	return Threat(MessagePrefix+out.Label, out.Confidence, s.Src), nil
}
