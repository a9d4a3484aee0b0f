// Package events publishes execution lifecycle records to Kafka so
// downstream consumers (notification fanout, audit ingest) can follow runs
// without polling the database.
package events

import (
	"context"
	"time"

	"task-scheduler-service/internal/models"
)

// Event types carried in ExecutionEvent.Type.
const (
	TypeExecutionStarted    = "execution.started"
	TypeExecutionSucceeded  = "execution.succeeded"
	TypeExecutionFailed     = "execution.failed"
	TypeExecutionTerminated = "execution.terminated"
	TypeRetryScheduled      = "execution.retry_scheduled"
)

// ExecutionEvent is the JSON document written per lifecycle transition.
type ExecutionEvent struct {
	Type        string    `json:"type"`
	TaskID      uint      `json:"task_id"`
	TaskName    string    `json:"task_name,omitempty"`
	ExecutionID uint      `json:"execution_id"`
	Trigger     string    `json:"trigger,omitempty"`
	Status      string    `json:"status,omitempty"`
	RetryCount  int       `json:"retry_count"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// FromExecution builds the event for one execution row at time at.
func FromExecution(eventType string, exec *models.TaskExecution, at time.Time) ExecutionEvent {
	return ExecutionEvent{
		Type:        eventType,
		TaskID:      exec.TaskID,
		TaskName:    exec.TaskName,
		ExecutionID: exec.ID,
		Trigger:     string(exec.Trigger),
		Status:      string(exec.Status),
		RetryCount:  exec.RetryCount,
		Error:       exec.ErrorMessage,
		At:          at,
	}
}

// Publisher delivers execution events. Publishing is best effort from the
// engine's point of view; a failed publish never fails the execution.
type Publisher interface {
	PublishExecutionEvent(ctx context.Context, event ExecutionEvent) error
	Close() error
}

// NopPublisher drops everything. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishExecutionEvent(ctx context.Context, event ExecutionEvent) error {
	return nil
}

func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
