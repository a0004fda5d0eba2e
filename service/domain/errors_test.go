package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatalf("expected empty kind for nil")
	}
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected internal for unclassified error, got %s", got)
	}
	wrapped := fmt.Errorf("dispatch: %w", NewError(KindNotFound, "user %d not found", 7))
	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("expected not_found through wrapping, got %s", got)
	}
}

func TestPublicMessage_HidesInternalDetail(t *testing.T) {
	err := &Error{Kind: KindInternal, Message: "create user", Err: errors.New("pq: connection refused")}
	if got := PublicMessage(err); got != "internal error" {
		t.Fatalf("expected opaque message, got %q", got)
	}
	if !errors.Is(err, err.Err) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	if got := PublicMessage(NewError(KindInvalidArgument, "email is required")); got != "email is required" {
		t.Fatalf("expected validation message to pass through, got %q", got)
	}
}

func TestPayload_ValidateAndData(t *testing.T) {
	if err := (Payload{}).Validate(); err != nil {
		t.Fatalf("plain payload must be valid: %v", err)
	}
	if len((Payload{}).Data()) != 0 {
		t.Fatalf("plain payload must not carry data")
	}
	if err := (Payload{Kind: PayloadLink}).Validate(); err == nil {
		t.Fatalf("expected link without url to be invalid")
	}
	if err := (Payload{Kind: "video"}).Validate(); err == nil {
		t.Fatalf("expected unknown kind to be invalid")
	}

	call := Payload{Kind: PayloadCall, CallerID: "c1", CallID: "call-9", IsVideo: true}
	if err := call.Validate(); err != nil {
		t.Fatalf("valid call payload rejected: %v", err)
	}
	data := call.Data()
	if data["type"] != "call" || data["is_video"] != "true" || data["call_id"] != "call-9" {
		t.Fatalf("unexpected call data: %v", data)
	}
	if call.Type() != "call" || (Payload{}).Type() != "plain" {
		t.Fatalf("unexpected payload types")
	}
}
