package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateContent(t *testing.T) {
	if err := ValidateContent("a perfectly fine concept"); err != nil {
		t.Errorf("Valid content should pass: %v", err)
	}
}

func TestValidateContentEmpty(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		if err := ValidateContent(content); !errors.Is(err, ErrInvalidContent) {
			t.Errorf("Content %q should be rejected with ErrInvalidContent, got %v", content, err)
		}
	}
}

func TestValidateContentTooLarge(t *testing.T) {
	huge := strings.Repeat("x", int(DefaultMaxContentBytes)+1)
	if err := ValidateContent(huge); !errors.Is(err, ErrContentTooLarge) {
		t.Errorf("Oversized content should be rejected with ErrContentTooLarge, got %v", err)
	}
}

func TestSetMaxContentBytes(t *testing.T) {
	t.Cleanup(func() { _ = SetMaxContentBytes(DefaultMaxContentBytes) })

	if err := SetMaxContentBytes(10); err != nil {
		t.Fatalf("SetMaxContentBytes failed: %v", err)
	}
	if err := ValidateContent("12345678901"); !errors.Is(err, ErrContentTooLarge) {
		t.Errorf("Content over the lowered limit should be rejected, got %v", err)
	}
	if err := SetMaxContentBytes(0); err == nil {
		t.Error("Zero limit should be rejected")
	}
}
