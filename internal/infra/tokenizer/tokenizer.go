package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken counts tokens with the BPE encoding of an OpenAI model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// New resolves the encoding used by model, falling back to cl100k_base for unknown models.
func New(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding: %w", err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Approximate estimates roughly four characters per token. It is used when the
// BPE ranks cannot be loaded.
type Approximate struct{}

// Count returns ceil(runes/4).
func (Approximate) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
