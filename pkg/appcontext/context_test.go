package appcontext

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestContextRunID(t *testing.T) {
	ctx := WithRunID(context.Background())

	id, ok := GetRunID(ctx)
	if !ok {
		t.Fatal("run id is missing from context")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("run id %q is not a uuid: %v", id, err)
	}

	other, _ := GetRunID(WithRunID(context.Background()))
	if other == id {
		t.Errorf("expected distinct run ids, got %s twice", id)
	}
}

func TestContextTriggerTag(t *testing.T) {
	if _, ok := GetTriggerTag(context.Background()); ok {
		t.Error("unexpected trigger tag in empty context")
	}

	ctx := WithTriggerTag(context.Background(), "location-sync")
	tag, ok := GetTriggerTag(ctx)
	if !ok || tag != "location-sync" {
		t.Errorf("Failed to retrieve trigger tag from context. Got: %s, want: %s", tag, "location-sync")
	}
}
