package resultcache

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/bio-generator/internal/domain/generator"
)

// ValkeyStore shares cached results between server instances through Valkey.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "bio"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Get implements generator.ResultCache.
func (s *ValkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	cmd := s.client.B().Get().Key(s.resultKey(key)).Build()
	text, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return text, true, nil
}

// Set implements generator.ResultCache.
func (s *ValkeyStore) Set(ctx context.Context, key, text string, ttl time.Duration) error {
	builder := s.client.B().Set().Key(s.resultKey(key)).Value(text)
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) resultKey(key string) string {
	return fmt.Sprintf("%s:result:%s", s.prefix, key)
}

var _ generator.ResultCache = (*ValkeyStore)(nil)
