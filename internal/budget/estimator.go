package budget

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Default characters-per-token ratios. These are approximations of typical
// BPE tokenizers: prose packs about four characters per token, source code
// three and JSON two and a half.
const (
	DefaultTextChars = 4.0
	DefaultCodeChars = 3.0
	DefaultJSONChars = 2.5
)

// Estimator approximates how many tokens a payload costs.
type Estimator interface {
	// Estimate returns the token cost of plain text.
	Estimate(text string) int
	// EstimateValue returns the token cost of v serialized as JSON.
	EstimateValue(v any) int
}

// CharRatio estimates tokens from character counts.
type CharRatio struct {
	TextChars float64
	CodeChars float64
	JSONChars float64
}

// DefaultCharRatio returns a CharRatio with the default ratios.
func DefaultCharRatio() CharRatio {
	return CharRatio{
		TextChars: DefaultTextChars,
		CodeChars: DefaultCodeChars,
		JSONChars: DefaultJSONChars,
	}
}

func ratioTokens(chars int, ratio float64) int {
	if chars == 0 {
		return 0
	}
	if ratio <= 0 {
		ratio = DefaultTextChars
	}
	return int(math.Ceil(float64(chars) / ratio))
}

// Estimate implements Estimator.
func (c CharRatio) Estimate(text string) int {
	return ratioTokens(utf8.RuneCountInString(text), c.TextChars)
}

// EstimateCode returns the token cost of source code.
func (c CharRatio) EstimateCode(text string) int {
	return ratioTokens(utf8.RuneCountInString(text), c.CodeChars)
}

// EstimateValue implements Estimator.
func (c CharRatio) EstimateValue(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return c.Estimate(fmt.Sprint(v))
	}
	return ratioTokens(utf8.RuneCount(data), c.JSONChars)
}

// Tiktoken counts tokens with a real BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding (for example "o200k_base").
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("budget: load encoding %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Estimate implements Estimator.
func (t *Tiktoken) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// EstimateValue implements Estimator.
func (t *Tiktoken) EstimateValue(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return t.Estimate(fmt.Sprint(v))
	}
	return t.Estimate(string(data))
}
