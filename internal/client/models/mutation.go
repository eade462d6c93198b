package models

import (
	"fmt"
	"time"
)

// Operation is the kind of write recorded in the mutation queue.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// ParseOperation validates a stored operation string.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpInsert, OpUpdate, OpDelete:
		return Operation(s), nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Mutation is one durable pending write. ID is client-generated and doubles
// as the idempotency key sent to the server, so replaying a mutation after a
// crash does not double-apply it.
type Mutation struct {
	ID          string
	Table       string
	Op          Operation
	Payload     Fields
	CreatedAt   time.Time
	RetryCount  int
	LastRetryAt *time.Time
	LastError   string
}

// RecordID returns the id of the record this mutation targets.
func (m *Mutation) RecordID() (string, error) {
	id, ok := m.Payload.StringValue("id")
	if !ok || id == "" {
		return "", fmt.Errorf("mutation %s has no record id in payload", m.ID)
	}
	return id, nil
}
