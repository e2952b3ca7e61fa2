package rediscache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/augurworld/augur/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "augur:report:-12.101622,-76.985037", key(domain.GridPoint{Lat: -12.101622, Lng: -76.985037}))
}

func TestReports_UnreachableRedisIsAMiss(t *testing.T) {
	client := Open("127.0.0.1:1", "", 0)
	c := NewReports(client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p := domain.GridPoint{Lat: 1, Lng: 2}
	c.Put(ctx, p, &domain.PrecipitationReport{Location: p})

	r, ok := c.Get(ctx, p)
	assert.False(t, ok)
	assert.Nil(t, r)
	assert.Error(t, c.Ping(ctx))
}
