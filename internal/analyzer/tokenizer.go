// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package analyzer

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
)

// Tokenizer maps summary text to vocabulary ids. It reads the word-level
// subset of the HuggingFace tokenizer.json layout:
//
//	{
//	  "normalizer": {"type": "Lowercase"},
//	  "truncation": {"max_length": 128},
//	  "model": {"type": "WordLevel", "unk_token": "[UNK]", "vocab": {"[UNK]": 0, "syn": 1}}
//	}
type Tokenizer struct {
	vocab     map[string]int
	unkID     int
	lowercase bool
	maxLength int
	maxID     int
}

type tokenizerFile struct {
	Normalizer *struct {
		Type string `json:"type"`
	} `json:"normalizer"`
	Truncation *struct {
		MaxLength int `json:"max_length"`
	} `json:"truncation"`
	Model struct {
		Type     string         `json:"type"`
		UnkToken string         `json:"unk_token"`
		Vocab    map[string]int `json:"vocab"`
	} `json:"model"`
}

// LoadTokenizer reads a tokenizer file.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	tok, err := ParseTokenizer(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return tok, nil
}

// ParseTokenizer decodes tokenizer JSON.
func ParseTokenizer(data []byte) (*Tokenizer, error) {
	var f tokenizerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode tokenizer: %w", err)
	}
	if f.Model.Type != "" && f.Model.Type != "WordLevel" {
		return nil, fmt.Errorf("unsupported tokenizer model %q", f.Model.Type)
	}
	if len(f.Model.Vocab) == 0 {
		return nil, errors.New("tokenizer vocabulary is empty")
	}

	unk := f.Model.UnkToken
	if unk == "" {
		unk = "[UNK]"
	}
	unkID, ok := f.Model.Vocab[unk]
	if !ok {
		return nil, fmt.Errorf("unknown token %q missing from vocabulary", unk)
	}

	t := &Tokenizer{vocab: make(map[string]int, len(f.Model.Vocab)), unkID: unkID}
	for word, id := range f.Model.Vocab {
		if id < 0 {
			return nil, fmt.Errorf("negative id for token %q", word)
		}
		t.vocab[word] = id
		if id > t.maxID {
			t.maxID = id
		}
	}
	if f.Normalizer != nil && strings.EqualFold(f.Normalizer.Type, "Lowercase") {
		t.lowercase = true
	}
	if f.Truncation != nil {
		t.maxLength = f.Truncation.MaxLength
	}
	return t, nil
}

// MaxLength is the tokenizer's own truncation bound, 0 when unset.
func (t *Tokenizer) MaxLength() int { return t.maxLength }

// VocabSize is one past the largest id in the vocabulary.
func (t *Tokenizer) VocabSize() int { return t.maxID + 1 }

// Encode appends the ids for text to dst, stopping after limit ids when limit
// is positive. Unknown words map to the unknown-token id; encoding never fails.
func (t *Tokenizer) Encode(text string, dst []int, limit int) []int {
	start := len(dst)
	fields := strings.FieldsFunc(text, isSeparator)
	for _, word := range fields {
		if limit > 0 && len(dst)-start >= limit {
			break
		}
		if t.lowercase {
			word = strings.ToLower(word)
		}
		id, ok := t.vocab[word]
		if !ok {
			id = t.unkID
		}
		dst = append(dst, id)
	}
	return dst
}

// isSeparator splits summaries into key and value words: "flags=SYN|ACK"
// becomes "flags", "SYN", "ACK". Address dots are kept.
func isSeparator(r rune) bool {
	switch r {
	case '=', '|', ',', ';', ':', '[', ']', '(', ')', '"', '\'':
		return true
	}
	return unicode.IsSpace(r)
}
