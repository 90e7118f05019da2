// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package analyzer

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/guardian/internal/capture/capturetest"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/summary"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

const (
	testModel     = "testdata/guardian-linear.json"
	testTokenizer = "testdata/tokenizer.json"
)

func loadTestAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	a, err := Load(testModel, testTokenizer, opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return a
}

func summarize(frame []byte) summary.TrafficSummary {
	return summary.Summarize(capturetest.Record(frame))
}

func TestAnalyze(t *testing.T) {
	a := loadTestAnalyzer(t, Options{})

	tests := []struct {
		name     string
		frame    []byte
		threat   bool
		message  string
		severity float64
	}{
		{
			name:     "syn to ssh",
			frame:    capturetest.TCPFrame("203.0.113.7", "10.0.0.5", 51514, 22, capturetest.TCPFlags{SYN: true}, nil),
			threat:   true,
			message:  "THREAT_DETECTED: Unauthorized Port Scan",
			severity: sigmoid(0.5),
		},
		{
			name:     "fin psh to unlisted port",
			frame:    capturetest.TCPFrame("203.0.113.8", "10.0.0.5", 40000, 8443, capturetest.TCPFlags{FIN: true, PSH: true}, nil),
			threat:   false,
		},
		{
			name:   "established http",
			frame:  capturetest.TCPFrame("198.51.100.4", "10.0.0.5", 40000, 80, capturetest.TCPFlags{ACK: true, PSH: true}, []byte("GET / HTTP/1.1")),
			threat: false,
		},
		{
			name:   "syn to web",
			frame:  capturetest.TCPFrame("198.51.100.4", "10.0.0.5", 40001, 443, capturetest.TCPFlags{SYN: true}, nil),
			threat: false,
		},
		{
			name:     "syn to telnet",
			frame:    capturetest.TCPFrame("203.0.113.9", "10.0.0.5", 40002, 23, capturetest.TCPFlags{SYN: true}, nil),
			threat:   true,
			message:  "THREAT_DETECTED: Unauthorized Port Scan",
			severity: sigmoid(1.5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := summarize(tt.frame)
			v, err := a.Analyze(s)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if v.IsThreat() != tt.threat {
				t.Fatalf("IsThreat() = %v, want %v for %q", v.IsThreat(), tt.threat, s.Text)
			}
			if !tt.threat {
				return
			}
			if v.Message != tt.message {
				t.Errorf("Message = %q, want %q", v.Message, tt.message)
			}
			if math.Abs(v.Severity-tt.severity) > 1e-9 {
				t.Errorf("Severity = %v, want %v", v.Severity, tt.severity)
			}
			if v.Source != s.Src {
				t.Errorf("Source = %v, want %v", v.Source, s.Src)
			}
		})
	}
}

func TestAnalyze_Threshold(t *testing.T) {
	a := loadTestAnalyzer(t, Options{Threshold: 0.7})
	s := summarize(capturetest.TCPFrame("203.0.113.7", "10.0.0.5", 51514, 22, capturetest.TCPFlags{SYN: true}, nil))

	v, err := a.Analyze(s)
	if err != nil {
		t.Fatal(err)
	}
	if v.IsThreat() {
		t.Errorf("confidence %.3f should be below threshold 0.7", sigmoid(0.5))
	}
}

func TestAnalyze_StealthScanLabel(t *testing.T) {
	a := loadTestAnalyzer(t, Options{})
	s := summary.TrafficSummary{Text: "proto=tcp src=203.0.113.8:40000 dst=10.0.0.5:22 flags=FIN|PSH|URG service=ssh", Src: capturetest.Addr("203.0.113.8")}

	v, err := a.Analyze(s)
	if err != nil {
		t.Fatal(err)
	}
	if v.Message != "THREAT_DETECTED: Stealth Scan" {
		t.Errorf("Message = %q", v.Message)
	}
}

func TestAnalyze_UnknownSource(t *testing.T) {
	a := loadTestAnalyzer(t, Options{})
	v, err := a.Analyze(summary.TrafficSummary{Text: "flags=NONE unparsed"})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsThreat() {
		t.Fatal("expected threat")
	}
	if v.Source.IsValid() {
		t.Errorf("Source = %v, want zero address", v.Source)
	}
}

func TestAnalyze_TruncatesOversizedInput(t *testing.T) {
	a := loadTestAnalyzer(t, Options{})
	if a.MaxTokens() != 64 {
		t.Fatalf("MaxTokens() = %d, want tokenizer bound 64", a.MaxTokens())
	}

	huge := summary.TrafficSummary{Text: strings.Repeat("flags=SYN ", 10000)}
	v, err := a.Analyze(huge)
	if err != nil {
		t.Fatalf("oversized input must be truncated, got %v", err)
	}
	// 64 tokens alternate "flags" and "syn": 32 * 2.0 - 3.0.
	if want := sigmoid(61); math.Abs(v.Severity-want) > 1e-9 {
		t.Errorf("Severity = %v, want %v", v.Severity, want)
	}

	capped := loadTestAnalyzer(t, Options{MaxInputLength: 4})
	if capped.MaxTokens() != 4 {
		t.Errorf("MaxTokens() = %d, want 4", capped.MaxTokens())
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := loadTestAnalyzer(t, Options{})
	s := summarize(capturetest.TCPFrame("203.0.113.7", "10.0.0.5", 51514, 3389, capturetest.TCPFlags{SYN: true}, nil))

	first, _ := a.Analyze(s)
	for i := 0; i < 5; i++ {
		if v, _ := a.Analyze(s); v != first {
			t.Fatalf("run %d: %+v != %+v", i, v, first)
		}
	}
}

type failingModel struct{}

func (failingModel) Forward([]int, []float64) (Output, error) { return Output{}, errors.New("tensor shape mismatch") }
func (failingModel) MaxInputLength() int                       { return 8 }
func (failingModel) VocabSize() int                            { return 1 }

func TestAnalyze_InferenceError(t *testing.T) {
	tok, err := LoadTokenizer(testTokenizer)
	if err != nil {
		t.Fatal(err)
	}
	a := New(failingModel{}, tok, Options{})

	_, err = a.Analyze(summary.TrafficSummary{Text: "proto=tcp"})
	var ie *InferenceError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InferenceError, got %v", err)
	}
	if ie.Summary != "proto=tcp" {
		t.Errorf("Summary = %q", ie.Summary)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	corrupt := write("corrupt.json", "{not json")
	wrongFormat := write("gguf.json", `{"format":"gguf","vocab_size":4,"max_input_length":8}`)
	tinyModel := write("tiny.json", `{"format":"guardian-linear/v1","vocab_size":2,"max_input_length":8}`)
	badWeight := write("badweight.json", `{"format":"guardian-linear/v1","vocab_size":2,"max_input_length":8,"weights":{"7":1.0}}`)
	noUnk := write("nounk.json", `{"model":{"type":"WordLevel","vocab":{"syn":0}}}`)
	bpe := write("bpe.json", `{"model":{"type":"BPE","vocab":{"[UNK]":0}}}`)

	tests := []struct {
		name      string
		model     string
		tokenizer string
		wantPath  string
	}{
		{"missing model", filepath.Join(dir, "absent.json"), testTokenizer, filepath.Join(dir, "absent.json")},
		{"missing tokenizer", testModel, filepath.Join(dir, "absent.json"), filepath.Join(dir, "absent.json")},
		{"corrupt model", corrupt, testTokenizer, corrupt},
		{"corrupt tokenizer", testModel, corrupt, corrupt},
		{"unsupported model format", wrongFormat, testTokenizer, wrongFormat},
		{"tokenizer larger than model", tinyModel, testTokenizer, tinyModel},
		{"weight outside vocabulary", badWeight, testTokenizer, badWeight},
		{"tokenizer without unk", testModel, noUnk, noUnk},
		{"unsupported tokenizer", testModel, bpe, bpe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.model, tt.tokenizer, Options{})
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
			if le.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", le.Path, tt.wantPath)
			}
		})
	}
}

func TestTokenizer_Encode(t *testing.T) {
	tok, err := LoadTokenizer(testTokenizer)
	if err != nil {
		t.Fatal(err)
	}

	ids := tok.Encode("proto=tcp flags=SYN|ACK 10.0.0.1", nil, 0)
	want := []int{1, 2, 8, 9, 10, 0}
	if len(ids) != len(want) {
		t.Fatalf("Encode() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}

	if got := tok.Encode("a b c d e f", nil, 3); len(got) != 3 {
		t.Errorf("limit 3 produced %d ids", len(got))
	}

	buf := make([]int, 0, 8)
	buf = tok.Encode("syn", buf, 8)
	buf = tok.Encode("ack", buf[:0], 8)
	if len(buf) != 1 || buf[0] != 10 {
		t.Errorf("buffer reuse produced %v", buf)
	}
}
