package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCreatedEvent_WireFormat(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	loc := time.FixedZone("CET", 3600)
	event := NewUserCreatedEvent(id, "johndoe", "john@example.com", time.Date(2024, 1, 2, 4, 4, 5, 0, loc))

	data, err := event.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"user_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"username": "johndoe",
		"email": "john@example.com",
		"created_at": "2024-01-02T03:04:05Z"
	}`, string(data))
	assert.Equal(t, id.String(), event.Key())

	decoded, err := UnmarshalUserCreatedEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestUnmarshalUserCreatedEvent_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{name: "missing user id", payload: `{"email":"a@b.c","created_at":"2024-01-02T03:04:05Z"}`, field: "user_id"},
		{name: "missing email", payload: `{"user_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","created_at":"2024-01-02T03:04:05Z"}`, field: "email"},
		{name: "missing timestamp", payload: `{"user_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","email":"a@b.c"}`, field: "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalUserCreatedEvent([]byte(tt.payload))
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	_, err := UnmarshalUserCreatedEvent([]byte("not json"))
	assert.Error(t, err)
}
