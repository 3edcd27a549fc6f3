package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/raphaelgruber/circles/internal/models"
)

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// CircleRepository is the persistence layer used by CircleService.
// *db.Client implements it.
type CircleRepository interface {
	ListCircles(ctx context.Context) ([]models.Circle, error)
	ListCirclesWithMembers(ctx context.Context) ([]models.CircleWithMembers, error)
	CreateCircle(ctx context.Context, name, color string) (*models.Circle, error)
	DeleteCircle(ctx context.Context, id int64) error
	AddCircleMember(ctx context.Context, circleID, personID int64) error
	RemoveCircleMember(ctx context.Context, circleID, personID int64) error
}

// CircleService manages circles and their members.
type CircleService struct {
	repo CircleRepository
}

// NewCircleService creates a new circle service.
func NewCircleService(repo CircleRepository) *CircleService {
	return &CircleService{repo: repo}
}

// ListCircles returns all circles.
func (s *CircleService) ListCircles(ctx context.Context) ([]models.Circle, error) {
	return s.repo.ListCircles(ctx)
}

// ListCirclesWithMembers returns all circles with their members.
func (s *CircleService) ListCirclesWithMembers(ctx context.Context) ([]models.CircleWithMembers, error) {
	return s.repo.ListCirclesWithMembers(ctx)
}

// CreateCircle validates and stores a circle. Without a color the next
// palette color is used.
func (s *CircleService) CreateCircle(ctx context.Context, req models.CircleCreate) (*models.Circle, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidf("circle name must not be empty")
	}
	color := strings.TrimSpace(req.Color)
	if color == "" {
		existing, err := s.repo.ListCircles(ctx)
		if err != nil {
			return nil, err
		}
		color = models.CircleColors[len(existing)%len(models.CircleColors)]
	} else if !colorPattern.MatchString(color) {
		return nil, invalidf("color %q must be #RGB or #RRGGBB", color)
	}

	ci, err := s.repo.CreateCircle(ctx, name, color)
	if err != nil {
		return nil, err
	}
	slog.Info("created circle", "circle_id", ci.ID, "name", ci.Name, "color", ci.Color)
	return ci, nil
}

// DeleteCircle removes a circle. Its members are kept.
func (s *CircleService) DeleteCircle(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCircle(ctx, id); err != nil {
		return err
	}
	slog.Info("deleted circle", "circle_id", id)
	return nil
}

// AddMember assigns a person to a circle.
func (s *CircleService) AddMember(ctx context.Context, circleID, personID int64) error {
	if err := s.repo.AddCircleMember(ctx, circleID, personID); err != nil {
		return err
	}
	slog.Info("added circle member", "circle_id", circleID, "person_id", personID)
	return nil
}

// RemoveMember takes a person out of a circle.
func (s *CircleService) RemoveMember(ctx context.Context, circleID, personID int64) error {
	return s.repo.RemoveCircleMember(ctx, circleID, personID)
}
