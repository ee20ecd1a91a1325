package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/linkpulse/linkpulse/internal/app/repository"
	"golang.org/x/crypto/bcrypt"
)

// maxGenerateAttempts bounds retries on code collisions. Exhausting it means
// the alphabet/length is too small for the table, which is an operator
// problem, not a user error.
const maxGenerateAttempts = 5

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, id string) (*model.Link, error)
	ListLinks(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	UpdateLink(ctx context.Context, id string, input UpdateLinkInput) (*model.Link, error)
	DeleteLink(ctx context.Context, id string) error
	ValidateAlias(ctx context.Context, candidate string) error
}

type linkService struct {
	repo      repository.LinkRepository
	analytics repository.AnalyticsRepository
	generator *CodeGenerator
	keys      *KeyIndex
}

// NewLinkService returns a service implementation backed by the given repositories.
func NewLinkService(repo repository.LinkRepository, analytics repository.AnalyticsRepository, generator *CodeGenerator, keys *KeyIndex) LinkService {
	return &linkService{
		repo:      repo,
		analytics: analytics,
		generator: generator,
		keys:      keys,
	}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	URL          string
	Alias        string
	OwnerID      string
	CollectionID *string
	Password     string
	ExpiresAt    *time.Time
}

// UpdateLinkInput captures fields that can be changed on an existing link.
// Password semantics: nil leaves the password alone, empty string clears it,
// anything else replaces it.
type UpdateLinkInput struct {
	URL          *string
	Alias        *string
	CollectionID *string
	Password     *string
	Active       *bool
	ExpiresAt    *time.Time
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if err := validateDestination(input.URL); err != nil {
		return nil, err
	}

	if input.Alias != "" {
		if err := s.ValidateAlias(ctx, input.Alias); err != nil {
			return nil, err
		}
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	link := &model.Link{
		ID:           uuid.New().String(),
		Alias:        input.Alias,
		URL:          input.URL,
		OwnerID:      input.OwnerID,
		CollectionID: input.CollectionID,
		PasswordHash: passwordHash,
		Active:       true,
		ExpiresAt:    input.ExpiresAt,
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := s.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}
		link.Code = code

		err = s.repo.Create(ctx, link)
		if err == nil {
			s.keys.Add(link.Code)
			s.keys.Add(link.Alias)
			if ensureErr := s.analytics.EnsureLink(ctx, link.ID); ensureErr != nil {
				return nil, fmt.Errorf("create link analytics: %w", ensureErr)
			}
			return link, nil
		}
		if err != repository.ErrKeyTaken {
			return nil, fmt.Errorf("create link: %w", err)
		}
		// A custom alias collision cannot be retried away.
		if link.Alias != "" {
			if taken, checkErr := s.keys.Contains(ctx, link.Alias); checkErr == nil && taken {
				return nil, ErrAliasTaken
			}
		}
	}

	return nil, ErrGenerationExhausted
}

func (s *linkService) GetLink(ctx context.Context, id string) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	links, err := s.repo.List(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) UpdateLink(ctx context.Context, id string, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}

	if input.URL != nil {
		if err := validateDestination(*input.URL); err != nil {
			return nil, err
		}
		link.URL = *input.URL
	}
	if input.Alias != nil && *input.Alias != link.Alias {
		if *input.Alias != "" {
			if err := s.ValidateAlias(ctx, *input.Alias); err != nil {
				return nil, err
			}
		}
		link.Alias = *input.Alias
	}
	if input.CollectionID != nil {
		if *input.CollectionID == "" {
			link.CollectionID = nil
		} else {
			link.CollectionID = input.CollectionID
		}
	}
	if input.Password != nil {
		hash, err := hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		link.PasswordHash = hash
	}
	if input.Active != nil {
		link.Active = *input.Active
	}
	if input.ExpiresAt != nil {
		link.ExpiresAt = input.ExpiresAt
	}

	if err := s.repo.Update(ctx, link); err != nil {
		if err == repository.ErrKeyTaken {
			return nil, ErrAliasTaken
		}
		return nil, fmt.Errorf("update link: %w", err)
	}
	s.keys.Add(link.Alias)
	return link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// ValidateAlias rejects candidates that fail the URL-safe format check or
// collide with an existing code/alias.
func (s *linkService) ValidateAlias(ctx context.Context, candidate string) error {
	if !ValidAliasFormat(candidate) {
		return ErrInvalidAlias
	}
	taken, err := s.keys.Contains(ctx, candidate)
	if err != nil {
		return fmt.Errorf("validate alias: %w", err)
	}
	if taken {
		return ErrAliasTaken
	}
	return nil
}

func validateDestination(raw string) error {
	if raw == "" || len(raw) > 2048 {
		return ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
