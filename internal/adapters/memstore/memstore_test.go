package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upjv/prospection-ui/internal/ports"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Delete(ctx, "k", "other"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "k", string(rune('a'+i%26)))
			_, _ = s.Get(ctx, "k")
		}()
	}
	wg.Wait()

	_, err := s.Get(ctx, "k")
	require.NoError(t, err)
}
