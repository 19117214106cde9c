package workflow

import (
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// TokenEncoding is the tokenizer used to size segmentation chunks.
const TokenEncoding = "cl100k_base"

var encoder = sync.OnceValue(func() *tiktoken.Tiktoken {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	enc, err := tiktoken.GetEncoding(TokenEncoding)
	if err != nil {
		return nil
	}
	return enc
})

// CountTokens counts s in cl100k_base tokens. If the encoding cannot be
// loaded it falls back to four characters per token.
func CountTokens(s string) int {
	if s == "" {
		return 0
	}
	if enc := encoder(); enc != nil {
		return len(enc.Encode(s, nil, nil))
	}
	return estimateTokens(s)
}

// estimateTokens approximates token count at four characters per token.
func estimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}
