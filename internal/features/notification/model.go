package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeTask    NotificationType = "task"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"` // recipient login id
	Key       string             `bson:"key" json:"key"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Type      NotificationType   `bson:"type" json:"type"`
	Link      string             `bson:"link,omitempty" json:"link,omitempty"`
	IsRead    bool               `bson:"is_read" json:"is_read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ReadAt    *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
}

// typeFor classifies a message key for the in-app inbox
func typeFor(key string) NotificationType {
	switch key {
	case "request.pending_approval", "request.reminder":
		return NotificationTypeTask
	case "request.approved", "request.advanced":
		return NotificationTypeSuccess
	case "request.rejected":
		return NotificationTypeWarning
	}
	return NotificationTypeInfo
}
