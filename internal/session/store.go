package session

import (
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"invoice-lens/internal/pipeline"
)

// Store holds extraction results for the duration of one UI session so the
// browser can re-fetch and download them after upload. Entries expire on TTL
// and are never written anywhere else; there is no persistence.
type Store struct {
	c      *cache.Cache
	logger *slog.Logger
}

func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		c:      cache.New(ttl, ttl/2),
		logger: logger,
	}
}

// Put stores a result under its ID for the session TTL.
func (s *Store) Put(res *pipeline.Result) {
	s.c.SetDefault(res.ID.String(), res)
	s.logger.Debug("session.put", "id", res.ID, "filename", res.Filename)
}

// Get returns the result for an ID, or false if unknown or expired.
func (s *Store) Get(id string) (*pipeline.Result, bool) {
	v, ok := s.c.Get(id)
	if !ok {
		return nil, false
	}
	res, ok := v.(*pipeline.Result)
	return res, ok
}

// Len reports how many unexpired results are held.
func (s *Store) Len() int {
	return s.c.ItemCount()
}
