package tle

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrNotFound is returned when a catalog number is not in the catalog.
var ErrNotFound = errors.New("satellite not in catalog")

// EpochRange represents the minimum and maximum epoch times in a catalog.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Catalog is a complete set of element sets from one refresh. It is never
// modified after NewCatalog returns; fresher data replaces it wholesale.
type Catalog struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []TLE

	byNumber map[int]int
}

// NewCatalog indexes entries by catalog number. The first entry wins when a
// number repeats.
func NewCatalog(source string, fetchedAt time.Time, entries []TLE) *Catalog {
	c := &Catalog{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: entries,
		byNumber:   make(map[int]int, len(entries)),
	}
	for i, e := range entries {
		if _, ok := c.byNumber[e.CatalogNumber]; !ok {
			c.byNumber[e.CatalogNumber] = i
		}
		if c.EpochRange.Min.IsZero() || e.Epoch.Before(c.EpochRange.Min) {
			c.EpochRange.Min = e.Epoch
		}
		if e.Epoch.After(c.EpochRange.Max) {
			c.EpochRange.Max = e.Epoch
		}
	}
	return c
}

// Lookup returns the element set with the given catalog number.
func (c *Catalog) Lookup(norad int) (TLE, bool) {
	i, ok := c.byNumber[norad]
	if !ok {
		return TLE{}, false
	}
	return c.Satellites[i], true
}

// Store provides thread-safe access to the current catalog.
type Store struct {
	catalog atomic.Pointer[Catalog]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Set atomically replaces the current catalog.
func (s *Store) Set(c *Catalog) {
	s.catalog.Store(c)
}

// Lookup finds an element set in the current catalog.
func (s *Store) Lookup(norad int) (TLE, bool) {
	c := s.catalog.Load()
	if c == nil {
		return TLE{}, false
	}
	return c.Lookup(norad)
}

// AgeSeconds returns the age of the current catalog in seconds.
// Returns -1 if no catalog is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.FetchedAt).Seconds()
}
