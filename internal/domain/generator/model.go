package generator

import (
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/bio-generator/pkg/metrics"
)

// Config configures the generation endpoint.
type Config struct {
	Model           string
	Temperature     float32
	SystemPrompt    string
	MaxPromptTokens int
	CacheEnabled    bool
	CacheTTL        time.Duration
	HistoryLimit    int
}

// Request is the payload accepted by POST /api/generate.
type Request struct {
	Prompt string `json:"prompt"`
}

// Delta is one piece of generated text. A Delta carrying Err is always the last one sent.
type Delta struct {
	Text string
	Err  error
}

// HistoryRecord describes one finished generation.
type HistoryRecord struct {
	ID         uuid.UUID          `json:"id"`
	Prompt     string             `json:"prompt"`
	Result     string             `json:"result"`
	Model      string             `json:"model"`
	Cached     bool               `json:"cached"`
	DurationMs int64              `json:"durationMs"`
	TokenUsage metrics.TokenUsage `json:"tokenUsage"`
	CreatedAt  time.Time          `json:"createdAt"`
}
