package model

import "time"

// Snapshot is the cached state a session can show before the backend answers.
type Snapshot struct {
	OwnerID       string         `json:"ownerId" bson:"owner_id"`
	User          User           `json:"user" bson:"user"`
	Recipients    []User         `json:"recipients" bson:"recipients"`
	Conversations []Conversation `json:"conversations" bson:"conversations"`
	SavedAt       time.Time      `json:"savedAt" bson:"saved_at"`
}
