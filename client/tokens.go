package client

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
)

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

func encodingFor(model string) *tiktoken.Tiktoken {
	encMu.Lock()
	defer encMu.Unlock()

	if enc, ok := encCache[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model names are common with OpenAI-compatible backends.
		enc, err = tiktoken.EncodingForModel("gpt-4o")
		if err != nil {
			encCache[model] = nil
			return nil
		}
	}
	encCache[model] = enc
	return enc
}

// countTokens reports the prompt size in tokens for usage accounting, or -1
// when no encoding is available.
func (c *OpenAI) countTokens(model string, messages []openai.ChatCompletionMessage) int {
	enc := encodingFor(model)
	if enc == nil {
		return -1
	}
	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil))
	}
	return total
}
