package internal

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

const (
	DefaultTokensPerCommit = 1000
	DefaultCharsPerToken   = 4

	// TruncationNotice is appended to any text cut down to fit a budget.
	TruncationNotice = "\n... [diff truncated to fit token budget]"
)

const (
	EstimatorChars    = "chars"
	EstimatorTiktoken = "tiktoken"
)

// Estimator approximates token counts and cuts text to a token budget.
// Implementations must be deterministic: the same input and budget always
// give the same output.
type Estimator interface {
	Name() string
	Estimate(text string) int
	// Truncate returns text unchanged when it fits. Otherwise it returns the
	// longest prefix that fits followed by TruncationNotice, and true.
	// A budget <= 0 means unlimited.
	Truncate(text string, budget int) (string, bool)
}

// CharEstimator counts a token as Divisor characters.
type CharEstimator struct {
	Divisor int
}

func NewCharEstimator() CharEstimator {
	return CharEstimator{Divisor: DefaultCharsPerToken}
}

func (e CharEstimator) Name() string { return EstimatorChars }

func (e CharEstimator) divisor() int {
	if e.Divisor <= 0 {
		return DefaultCharsPerToken
	}
	return e.Divisor
}

func (e CharEstimator) Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	d := e.divisor()
	return (n + d - 1) / d
}

func (e CharEstimator) Truncate(text string, budget int) (string, bool) {
	if budget <= 0 || e.Estimate(text) <= budget {
		return text, false
	}

	keep := budget * e.divisor()
	i := 0
	for pos := range text {
		if i == keep {
			return text[:pos] + TruncationNotice, true
		}
		i++
	}
	return text, false
}

// TiktokenEstimator counts real cl100k_base tokens.
type TiktokenEstimator struct {
	codec tokenizer.Codec
}

func NewTiktokenEstimator() (*TiktokenEstimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base tokenizer: %w", err)
	}
	return &TiktokenEstimator{codec: codec}, nil
}

func (e *TiktokenEstimator) Name() string { return EstimatorTiktoken }

func (e *TiktokenEstimator) Estimate(text string) int {
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return NewCharEstimator().Estimate(text)
	}
	return len(ids)
}

func (e *TiktokenEstimator) Truncate(text string, budget int) (string, bool) {
	if budget <= 0 {
		return text, false
	}

	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return NewCharEstimator().Truncate(text, budget)
	}
	if len(ids) <= budget {
		return text, false
	}

	prefix, err := e.codec.Decode(ids[:budget])
	if err != nil {
		return NewCharEstimator().Truncate(text, budget)
	}
	// A cut inside a multi-byte sequence decodes to a replacement rune.
	prefix = strings.TrimRight(prefix, string(utf8.RuneError))
	return prefix + TruncationNotice, true
}

// NewEstimator returns the estimator registered under name.
func NewEstimator(name string) (Estimator, error) {
	switch name {
	case "", EstimatorChars:
		return NewCharEstimator(), nil
	case EstimatorTiktoken:
		return NewTiktokenEstimator()
	default:
		return nil, fmt.Errorf("unknown token estimator %q", name)
	}
}
