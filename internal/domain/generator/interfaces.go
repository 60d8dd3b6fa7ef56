package generator

import (
	"context"
	"time"

	"github.com/yanqian/bio-generator/internal/infra/llm/chatgpt"
)

// ChatClient opens a streaming chat completion.
type ChatClient interface {
	CreateChatCompletionStream(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.Stream, error)
}

// TokenCounter measures prompts against the model's tokenizer.
type TokenCounter interface {
	Count(text string) int
}

// ResultCache stores completed generations keyed by prompt fingerprint.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string, ttl time.Duration) error
}

// HistoryRepository records finished generations.
type HistoryRepository interface {
	Append(ctx context.Context, record HistoryRecord) error
	Recent(ctx context.Context, limit int) ([]HistoryRecord, error)
}
