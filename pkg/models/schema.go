package models

import (
	"fmt"

	"github.com/google/uuid"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateUserCreatedEvent(event *UserCreatedEvent) error {
	if event == nil {
		return &ValidationError{Field: "event", Message: "event cannot be nil"}
	}

	if event.UserID == uuid.Nil {
		return &ValidationError{Field: "user_id", Message: "user ID is required"}
	}

	if event.Email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}

	if event.CreatedAt.IsZero() {
		return &ValidationError{Field: "created_at", Message: "creation timestamp is required"}
	}

	return nil
}
