package model

import (
	"encoding/json"
	"time"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
)

// OutboxMessage is one durable outbound event, enqueued in the same database
// transaction as the ledger mutation that caused it. A relay publishes rows
// to the broker and marks them; publish failure reschedules, never drops.
type OutboxMessage struct {
	ID            string // ULID; lexicographic order is creation order
	Exchange      string
	RoutingKey    string
	Payload       json.RawMessage
	Status        OutboxStatus
	Attempts      int
	NextAttemptAt time.Time
	PublishedAt   *time.Time
	CreatedAt     time.Time
}

// Broker topology. Routing keys are consumed by the enrollment and
// notification collaborators, which are themselves idempotent.
const (
	ExchangeEvents = "lms.events"

	RoutingKeyEnrollment         = "course.enrollment"
	RoutingKeyNotification       = "payment.notification"
	RoutingKeySubscriptionStatus = "subscription.status"
)

// EnrollmentMessage grants or confirms course access downstream.
type EnrollmentMessage struct {
	UserID    string    `json:"user_id"`
	CourseIDs []string  `json:"course_ids"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationMessage feeds the notification collaborator.
type NotificationMessage struct {
	UserID           string   `json:"user_id"`
	EventType        string   `json:"event_type"`
	Amount           int64    `json:"amount"`
	Currency         string   `json:"currency"`
	CourseNames      []string `json:"course_names,omitempty"`
	SubscriptionName string   `json:"subscription_name,omitempty"`
	RetryCount       int      `json:"retry_count,omitempty"`
}

// SubscriptionStatusMessage reports subscription lifecycle changes.
type SubscriptionStatusMessage struct {
	UserID           string    `json:"user_id"`
	SubscriptionName string    `json:"subscription_name"`
	Status           string    `json:"status"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	Timestamp        time.Time `json:"timestamp"`
}
