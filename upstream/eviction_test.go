package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEvictsStaleEntries(t *testing.T) {
	v := "x"
	fetch := func(ctx context.Context, ids []string) (map[string]*string, error) {
		return map[string]*string{ids[0]: &v}, nil
	}

	c := New[string]("test", Config{BatchInterval: time.Millisecond, TTL: 10 * time.Millisecond}, fetch, nil)
	res := c.Get(context.Background(), "stale-me")
	require.True(t, res.Exists)

	time.Sleep(30 * time.Millisecond) // older than 2x TTL
	c.Evict()

	stats := c.Stats()
	assert.Equal(t, 0, stats["FreshExists"]+stats["StaleExists"], "eviction must remove the aged entry entirely")
}

func TestCachePendingEntryNotEvicted(t *testing.T) {
	block := make(chan struct{})
	fetch := func(ctx context.Context, ids []string) (map[string]*string, error) {
		<-block
		v := "x"
		return map[string]*string{ids[0]: &v}, nil
	}

	c := New[string]("test", Config{BatchInterval: time.Millisecond, TTL: time.Millisecond}, fetch, nil)
	go c.Get(context.Background(), "in-flight")
	time.Sleep(5 * time.Millisecond) // let it register as pending

	c.Evict()
	stats := c.Stats()
	assert.Equal(t, 1, stats["Pending"], "a pending fetch must not be evicted mid-flight")

	close(block)
}
