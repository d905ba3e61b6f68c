package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserCreated = "user.created"
	EventTypeUserDeleted = "user.deleted"
)

type UserCreatedEvent struct {
	BaseEvent
	UserUUID string `json:"user_uuid"`
	Email    string `json:"email"`
}

func NewUserCreatedEvent(userUUID, email string) *UserCreatedEvent {
	return &UserCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_uuid": userUUID,
				"email":     email,
			},
		},
		UserUUID: userUUID,
		Email:    email,
	}
}

type UserDeletedEvent struct {
	BaseEvent
	UserUUID string `json:"user_uuid"`
	Email    string `json:"email"`
}

func NewUserDeletedEvent(userUUID, email string) *UserDeletedEvent {
	return &UserDeletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserDeleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_uuid": userUUID,
				"email":     email,
			},
		},
		UserUUID: userUUID,
		Email:    email,
	}
}
