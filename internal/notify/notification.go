package notify

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/collegeadmin/internal/form"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// Severity controls how a notification is presented and logged.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Kind identifies what produced the notification.
type Kind string

const (
	KindCreated        Kind = "created"
	KindUpdated        Kind = "updated"
	KindDeleted        Kind = "deleted"
	KindFetchFailed    Kind = "fetch_failed"
	KindValidation     Kind = "validation_failed"
	KindMutationFailed Kind = "mutation_failed"
	KindSession        Kind = "session"
)

// Notification is a transient, user-visible message.
type Notification struct {
	ID         string            `json:"id"`
	Session    string            `json:"session,omitempty"`
	Entity     string            `json:"entity,omitempty"`
	Kind       Kind              `json:"kind"`
	Severity   Severity          `json:"severity"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func newNotification(es *schema.EntitySchema, kind Kind, sev Severity, msg string) Notification {
	n := Notification{
		ID:         uuid.New().String(),
		Kind:       kind,
		Severity:   sev,
		Message:    msg,
		OccurredAt: time.Now().UTC(),
	}
	if es != nil {
		n.Entity = es.Name
	}
	return n
}

// Created reports a successful create, e.g. "Student created successfully".
func Created(es *schema.EntitySchema) Notification {
	return newNotification(es, KindCreated, SeveritySuccess, es.Title+" created successfully")
}

// Updated reports a successful update.
func Updated(es *schema.EntitySchema) Notification {
	return newNotification(es, KindUpdated, SeveritySuccess, es.Title+" updated successfully")
}

// Deleted reports a successful delete.
func Deleted(es *schema.EntitySchema) Notification {
	return newNotification(es, KindDeleted, SeveritySuccess, es.Title+" deleted successfully")
}

// FetchFailed reports a list call that failed for es, e.g.
// "Failed to fetch departments.".
func FetchFailed(es *schema.EntitySchema) Notification {
	return newNotification(es, KindFetchFailed, SeverityError, "Failed to fetch "+es.Plural+".")
}

// Failure turns a mutation or validation error into a notification. A
// *form.ValidationError becomes a warning carrying the field errors; any
// other error is shown with its message.
func Failure(es *schema.EntitySchema, err error) Notification {
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		n := newNotification(es, KindValidation, SeverityWarning, "Please fix: "+strings.Join(verr.Names(), ", "))
		n.Fields = verr.Fields
		return n
	}
	return newNotification(es, KindMutationFailed, SeverityError, err.Error())
}

// Info is a free-form informational message.
func Info(msg string) Notification {
	return newNotification(nil, KindSession, SeverityInfo, msg)
}
