// Package model defines domain structs shared across the monitoring pipeline
// and the persistence layer.
package model

import (
	"fmt"
	"time"
)

// Status is the outcome of a probe, stored as a small integer.
type Status int

const (
	StatusPending Status = 0
	StatusUp      Status = 1
	StatusDown    Status = 2
	// StatusFailed marks an internal/OS error, distinct from a negative
	// probe result.
	StatusFailed Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusUp:
		return "Up"
	case StatusDown:
		return "Down"
	case StatusFailed:
		return "Failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Invert flips Up and Down; Pending and Failed pass through.
func (s Status) Invert() Status {
	switch s {
	case StatusUp:
		return StatusDown
	case StatusDown:
		return StatusUp
	}
	return s
}

// ServiceType selects the probe driver for a service.
type ServiceType string

const (
	ServiceTypePing ServiceType = "ping"
	ServiceTypeHTTP ServiceType = "http"
)

// Service is a user-defined network endpoint to be monitored.
// last_status is mutated only by the transition engine; everything else is
// admin-owned configuration.
type Service struct {
	ID              uint32      `json:"id"`
	UserID          uint32      `json:"user_id"`
	Active          bool        `json:"active"`
	Name            string      `json:"name"`
	Interval        uint32      `json:"interval"` // seconds, >= 1
	URL             string      `json:"url"`
	Timeout         uint32      `json:"timeout"` // seconds, >= 1
	LastStatus      Status      `json:"last_status"`
	ServiceType     ServiceType `json:"service_type"`
	Retry           uint32      `json:"retry"`
	RetryInterval   uint32      `json:"retry_interval"`
	Invert          bool        `json:"invert"`
	ExpectedCode    *int        `json:"expected_code,omitempty"`
	ExpectedPayload *string     `json:"expected_payload,omitempty"`
}

// LogEntry is the persisted result of one probe. Append-only.
type LogEntry struct {
	ID        int64     `json:"id"`
	ServiceID uint32    `json:"service_id"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
	Duration  uint32    `json:"duration"` // milliseconds
}

func (l LogEntry) String() string {
	return fmt.Sprintf("%s time=%dms", l.Status, l.Duration)
}

// Incident is a derived grouping of non-Up log entries for one service on a
// single date.
type Incident struct {
	ServiceID   uint32    `json:"service_id"`
	ServiceName string    `json:"service_name"`
	ServiceURL  string    `json:"service_url"`
	Status      Status    `json:"status"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Count       int       `json:"count"`
	Messages    string    `json:"messages"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// ProbeTask is the immutable queue payload: a snapshot of the service config
// at enqueue time. The domain Service row is not touched until the transition
// engine persists the outcome.
type ProbeTask struct {
	Service    Service   `json:"service"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NotificationLevel is the severity of an operator notification.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
)

// Notification is an operator-visible popup message.
type Notification struct {
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Level   NotificationLevel `json:"level"`
}

// UserRole controls API authorization.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleViewer UserRole = "viewer"
)

// User is an operator account.
type User struct {
	ID       uint32   `json:"id"`
	Username string   `json:"username"`
	Password string   `json:"-"` // bcrypt hash, never serialized
	Role     UserRole `json:"role"`
	Active   bool     `json:"active"`
	Timezone string   `json:"timezone,omitempty"`
}

// ServiceStats is the dashboard summary over all services.
type ServiceStats struct {
	Count  int `json:"count"`
	Active int `json:"active"`
	Up     int `json:"up"`
	Down   int `json:"down"`
	Failed int `json:"failed"`
}

// ConfigEntry is a key-value setting row, optionally grouped by category.
type ConfigEntry struct {
	ID          uint32    `json:"id"`
	Name        string    `json:"name"`
	Value       string    `json:"value"`
	Category    string    `json:"category,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}
