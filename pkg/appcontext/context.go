// Package appcontext provides utility functions for working with context in the application.

package appcontext

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// String returns the string representation of the context key.
func (c contextKey) String() string {
	return string(c)
}

// ContextRunID and ContextTriggerTag are the context keys of a background run.
var (
	ContextRunID      = contextKey("runID")
	ContextTriggerTag = contextKey("triggerTag")
)

// WithRunID returns a new context carrying a freshly generated run id.
func WithRunID(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextRunID, uuid.NewString())
}

// GetRunID retrieves the run id from the context.
func GetRunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextRunID).(string)
	return id, ok
}

// WithTriggerTag returns a new context with the tag that started the run.
func WithTriggerTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, ContextTriggerTag, tag)
}

// GetTriggerTag retrieves the trigger tag from the context.
func GetTriggerTag(ctx context.Context) (string, bool) {
	tag, ok := ctx.Value(ContextTriggerTag).(string)
	return tag, ok
}
