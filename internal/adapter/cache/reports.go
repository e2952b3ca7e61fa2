package cache

import (
	"context"

	"github.com/augurworld/augur/internal/domain"
)

// Reports caches precipitation reports by grid point in process memory.
// Grid data is immutable, so entries never expire; the LRU bounds memory.
type Reports struct {
	lru *LRU[*domain.PrecipitationReport]
}

// NewReports creates a report cache holding at most maxEntries reports.
func NewReports(maxEntries int) *Reports {
	return &Reports{lru: NewLRU[*domain.PrecipitationReport](maxEntries)}
}

func (c *Reports) Get(_ context.Context, p domain.GridPoint) (*domain.PrecipitationReport, bool) {
	return c.lru.Get(p.Key())
}

func (c *Reports) Put(_ context.Context, p domain.GridPoint, r *domain.PrecipitationReport) {
	c.lru.Put(p.Key(), r)
}
