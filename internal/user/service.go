package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"herald/internal/logger"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
)

type EventPublisher interface {
	Publish(ctx context.Context, event models.UserCreatedEvent) error
}

type Service struct {
	repo      Repository
	uow       UnitOfWork
	publisher EventPublisher
	logger    logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, uow UnitOfWork, publisher EventPublisher, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		uow:       uow,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Register stores a new user and publishes its UserCreatedEvent in the same
// unit of work. A failing in-process handler rolls the insert back; broker
// delivery happens in the background and cannot fail the registration.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := ValidateRegister(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	u := &User{
		ID:        uuid.New(),
		Username:  req.Username,
		Email:     req.Email,
		CreatedAt: s.now().UTC(),
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx DBTX) error {
		if err := s.repo.Create(ctx, tx, u); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, models.NewUserCreatedEvent(u.ID, u.Username, u.Email, u.CreatedAt))
	})
	if err != nil {
		var appErr *pkgerrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.logger.InfowCtx(ctx, "User registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return s.repo.Get(ctx, s.uow.DB(), userID)
}
