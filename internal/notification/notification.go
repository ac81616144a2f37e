// Package notification delivers clinician-facing notifications for alert
// lifecycle events and keeps a bounded in-memory history for the API.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type categorizes a notification.
type Type string

const (
	TypeAlertCreated   Type = "alert_created"
	TypeActionRecorded Type = "action_recorded"
	TypeOutcomeLogged  Type = "outcome_logged"
	TypeSystem         Type = "system"
)

// Priority orders notifications for display.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
)

// Notification is one clinician-facing message.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Priority  Priority       `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	SubjectID string         `json:"subject_id,omitempty"`
	AlertID   uint64         `json:"alert_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
}

// New creates a notification with a fresh id and timestamp.
func New(notifType Type, priority Priority, title, message string) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		Type:      notifType,
		Priority:  priority,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// WithSubject attaches the subject context.
func (n *Notification) WithSubject(subjectID string) *Notification {
	n.SubjectID = subjectID
	return n
}

// WithAlert attaches the alert context.
func (n *Notification) WithAlert(alertID uint64) *Notification {
	n.AlertID = alertID
	return n
}

// WithMetadata attaches one metadata entry.
func (n *Notification) WithMetadata(key string, value any) *Notification {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
	return n
}
