package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UserCreatedEvent is published once per registered user and never mutated afterwards.
type UserCreatedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserCreatedEvent(userID uuid.UUID, username, email string, createdAt time.Time) UserCreatedEvent {
	return UserCreatedEvent{
		UserID:    userID,
		Username:  username,
		Email:     email,
		CreatedAt: createdAt.UTC(),
	}
}

// Key is the partition key; all events for one user land on the same partition.
func (e UserCreatedEvent) Key() string {
	return e.UserID.String()
}

func (e UserCreatedEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalUserCreatedEvent(data []byte) (UserCreatedEvent, error) {
	var event UserCreatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return UserCreatedEvent{}, err
	}
	if err := ValidateUserCreatedEvent(&event); err != nil {
		return UserCreatedEvent{}, err
	}
	return event, nil
}
