package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodedErrorMessage(t *testing.T) {
	err := NewError(CodePoolExhausted, "no idle container", errors.New("factory down"))
	if got, want := err.Error(), "POOL_EXHAUSTED: no idle container: factory down"; got != want {
		t.Fatalf("Error() = %q; want %q", got, want)
	}
}

func TestHasCode_FollowsWrapping(t *testing.T) {
	base := NewError(CodeUnimplementedMethod, "openDevTools", nil)
	wrapped := fmt.Errorf("bridge: %w", base)

	if !HasCode(wrapped, CodeUnimplementedMethod) {
		t.Fatalf("HasCode(wrapped, %q) = false; want true", CodeUnimplementedMethod)
	}
	if HasCode(wrapped, CodeValidation) {
		t.Fatalf("HasCode(wrapped, %q) = true; want false", CodeValidation)
	}
	if HasCode(nil, CodeValidation) {
		t.Fatal("HasCode(nil) = true; want false")
	}
}
