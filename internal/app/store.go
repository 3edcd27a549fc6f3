// Package app holds the shared application context: the known-persons list
// and the relationship graph, re-fetched in full from the backend whenever
// they may have changed.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/raphaelgruber/circles/internal/models"
)

// Source is the backend the store reads from.
type Source interface {
	ListPersons(ctx context.Context) ([]models.Person, error)
	DeletePerson(ctx context.Context, id int64) error
	GetGraph(ctx context.Context) (*models.GraphResponse, error)
}

// CircleSource is implemented by backends that also serve circles.
type CircleSource interface {
	ListCirclesWithMembers(ctx context.Context) ([]models.CircleWithMembers, error)
}

// Store caches persons and the graph. Readers get copies; the caches are
// only ever replaced by a full refetch, never patched from partial results.
// All methods are thread-safe.
type Store struct {
	src    Source
	logger *slog.Logger

	mu      sync.RWMutex
	persons []models.Person
	graph   models.GraphResponse
	circles []models.CircleWithMembers
}

// NewStore creates an empty store over src.
func NewStore(src Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{src: src, logger: logger}
}

// Persons returns a copy of the known persons.
func (s *Store) Persons() []models.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Person(nil), s.persons...)
}

// Person returns the cached person with id, or nil.
func (s *Store) Person(id int64) *models.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.persons {
		if s.persons[i].ID == id {
			p := s.persons[i]
			return &p
		}
	}
	return nil
}

// Graph returns a copy of the cached graph.
func (s *Store) Graph() models.GraphResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.GraphResponse{
		Nodes: append([]models.GraphNode(nil), s.graph.Nodes...),
		Edges: append([]models.GraphEdge(nil), s.graph.Edges...),
	}
}

// Circles returns a copy of the cached circles.
func (s *Store) Circles() []models.CircleWithMembers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CircleWithMembers, len(s.circles))
	for i, c := range s.circles {
		c.Members = append([]models.PersonSummary(nil), c.Members...)
		out[i] = c
	}
	return out
}

// CirclesOf returns the cached circles personID belongs to.
func (s *Store) CirclesOf(personID int64) []models.Circle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Circle
	for _, c := range s.circles {
		for _, m := range c.Members {
			if m.ID == personID {
				out = append(out, c.Circle)
				break
			}
		}
	}
	return out
}

// RefreshCircles re-fetches circles with their members. Sources without
// circle support leave the cache empty.
func (s *Store) RefreshCircles(ctx context.Context) error {
	cs, ok := s.src.(CircleSource)
	if !ok {
		return nil
	}
	circles, err := cs.ListCirclesWithMembers(ctx)
	if err != nil {
		return fmt.Errorf("refresh circles: %w", err)
	}
	s.mu.Lock()
	s.circles = circles
	s.mu.Unlock()
	return nil
}

// RefreshPersons re-fetches the full person list.
func (s *Store) RefreshPersons(ctx context.Context) error {
	persons, err := s.src.ListPersons(ctx)
	if err != nil {
		return fmt.Errorf("refresh persons: %w", err)
	}
	s.mu.Lock()
	s.persons = persons
	s.mu.Unlock()
	s.logger.Debug("persons refreshed", "count", len(persons))
	return nil
}

// RefreshGraph re-fetches the relationship graph.
func (s *Store) RefreshGraph(ctx context.Context) error {
	graph, err := s.src.GetGraph(ctx)
	if err != nil {
		return fmt.Errorf("refresh graph: %w", err)
	}
	if graph == nil {
		graph = &models.GraphResponse{}
	}
	s.mu.Lock()
	s.graph = *graph
	s.mu.Unlock()
	return nil
}

// Refresh re-fetches persons, graph and circles.
func (s *Store) Refresh(ctx context.Context) error {
	if err := s.RefreshPersons(ctx); err != nil {
		return err
	}
	if err := s.RefreshGraph(ctx); err != nil {
		return err
	}
	return s.RefreshCircles(ctx)
}

// DeletePerson deletes a person and refreshes all caches.
func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	if err := s.src.DeletePerson(ctx, id); err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}
	s.logger.Info("person deleted", "person_id", id)
	return s.Refresh(ctx)
}
