package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/yanqian/bio-generator/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/bio-generator/pkg/errors"
	"github.com/yanqian/bio-generator/pkg/metrics"
)

const persistTimeout = 5 * time.Second

// Service exposes text generation for the HTTP transport.
type Service interface {
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
	History(ctx context.Context, limit int) ([]HistoryRecord, error)
}

type service struct {
	cfg     Config
	client  ChatClient
	counter TokenCounter
	cache   ResultCache
	history HistoryRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewService is a wire provider for the generator domain.
func NewService(cfg Config, client ChatClient, counter TokenCounter, cache ResultCache, history HistoryRepository, logger *slog.Logger) Service {
	return &service{
		cfg:     cfg,
		client:  client,
		counter: counter,
		cache:   cache,
		history: history,
		logger:  logger.With("component", "generator.service"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	prompt := normalize(req.Prompt)
	if prompt == "" {
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "prompt cannot be empty", nil)
	}
	promptTokens := s.counter.Count(prompt)
	if s.cfg.MaxPromptTokens > 0 && promptTokens > s.cfg.MaxPromptTokens {
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		msg := fmt.Sprintf("prompt is %d tokens, limit is %d", promptTokens, s.cfg.MaxPromptTokens)
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, msg, nil)
	}

	start := time.Now()
	key := cacheKey(s.cfg.Model, s.cfg.SystemPrompt, prompt)
	if text, ok := s.lookup(ctx, key); ok {
		out := make(chan Delta, 1)
		out <- Delta{Text: text}
		close(out)
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeCached).Inc()
		metrics.FragmentsStreamed.Inc()
		s.record(ctx, HistoryRecord{
			Prompt:     prompt,
			Result:     text,
			Cached:     true,
			DurationMs: time.Since(start).Milliseconds(),
		})
		return out, nil
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, chatgpt.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    s.buildMessages(prompt),
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, apperrors.Wrap(apperrors.CodeLLM, "chatgpt stream request failed", err)
	}

	out := make(chan Delta)
	go s.forward(ctx, stream, generation{prompt: prompt, key: key, promptTokens: promptTokens, start: start}, out)
	return out, nil
}

func (s *service) History(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	records, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load generation history: %w", err)
	}
	return records, nil
}

type generation struct {
	prompt       string
	key          string
	promptTokens int
	start        time.Time
}

func (s *service) forward(ctx context.Context, stream chatgpt.Stream, gen generation, out chan<- Delta) {
	defer close(out)
	defer stream.Close()

	var (
		builder strings.Builder
		usage   *chatgpt.Usage
	)
	for {
		chunk, recvErr := stream.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
			s.logger.Error("chatgpt stream recv failed", "error", recvErr, "received_bytes", builder.Len())
			s.send(ctx, out, Delta{Err: apperrors.Wrap(apperrors.CodeLLM, "chatgpt stream interrupted", recvErr)})
			return
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		text := chunk.Content()
		if text == "" {
			continue
		}
		builder.WriteString(text)
		if !s.send(ctx, out, Delta{Text: text}) {
			s.logger.Warn("client went away mid-stream", "received_bytes", builder.Len())
			return
		}
		metrics.FragmentsStreamed.Inc()
	}

	result := builder.String()
	elapsed := time.Since(gen.start)
	metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.GenerationDuration.Observe(elapsed.Seconds())

	tokenUsage := s.tokenUsage(usage, gen.promptTokens, result)
	metrics.ObserveUsage(tokenUsage)
	s.logger.Debug("generation completed", "bytes", len(result), "latency_ms", elapsed.Milliseconds(), "total_tokens", tokenUsage.TotalTokens)

	if result != "" {
		s.remember(ctx, gen.key, result)
	}
	s.record(ctx, HistoryRecord{
		Prompt:     gen.prompt,
		Result:     result,
		DurationMs: elapsed.Milliseconds(),
		TokenUsage: tokenUsage,
	})
}

func (s *service) send(ctx context.Context, out chan<- Delta, delta Delta) bool {
	select {
	case out <- delta:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *service) tokenUsage(usage *chatgpt.Usage, promptTokens int, result string) metrics.TokenUsage {
	if usage != nil {
		return metrics.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}.WithTotal()
	}
	return metrics.TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: s.counter.Count(result),
	}.WithTotal()
}

func (s *service) lookup(ctx context.Context, key string) (string, bool) {
	if !s.cfg.CacheEnabled {
		return "", false
	}
	text, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("result cache lookup failed", "error", err)
		return "", false
	}
	return text, ok && text != ""
}

// remember and record run after the response may already be finished, so they
// detach from the request's cancellation.
func (s *service) remember(ctx context.Context, key, text string) {
	if !s.cfg.CacheEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.cache.Set(ctx, key, text, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("result cache store failed", "error", err)
	}
}

func (s *service) record(ctx context.Context, record HistoryRecord) {
	record.ID = uuid.New()
	record.Model = s.cfg.Model
	record.CreatedAt = s.now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.history.Append(ctx, record); err != nil {
		s.logger.Warn("history append failed", "error", err)
	}
}

func (s *service) buildMessages(prompt string) []chatgpt.Message {
	return []chatgpt.Message{
		{Role: "system", Content: s.cfg.SystemPrompt},
		{Role: "user", Content: prompt},
	}
}

func cacheKey(model, systemPrompt, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + systemPrompt + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

func normalize(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	return text
}
