package errors_test

import (
	"encoding/json"
	"testing"

	apierr "github.com/opst/chemviz/pkg/api/types/errors"
)

func TestErrorMessage(t *testing.T) {
	t.Run("it prefers error field by default", func(t *testing.T) {
		em := apierr.ErrorMessage{Err: "Invalid credentials", Detail: "ignored"}
		if msg, ok := em.Message(); !ok || msg != "Invalid credentials" {
			t.Errorf("unexpected message: (%q, %v)", msg, ok)
		}
	})

	t.Run("it follows the given order", func(t *testing.T) {
		em := apierr.ErrorMessage{Err: "Failed to process CSV", Detail: "No file was submitted."}
		if msg, ok := em.Message(apierr.FieldDetail, apierr.FieldError); !ok || msg != "No file was submitted." {
			t.Errorf("unexpected message: (%q, %v)", msg, ok)
		}
	})

	t.Run("it falls back to the next field", func(t *testing.T) {
		em := apierr.ErrorMessage{Err: "Failed to process CSV"}
		if msg, ok := em.Message(apierr.FieldDetail, apierr.FieldError); !ok || msg != "Failed to process CSV" {
			t.Errorf("unexpected message: (%q, %v)", msg, ok)
		}
	})

	t.Run("it reports absence when no field is set", func(t *testing.T) {
		em := apierr.ErrorMessage{}
		if _, ok := em.Message(); ok {
			t.Error("message should be absent")
		}
	})

	t.Run("it decodes backend payloads", func(t *testing.T) {
		em := apierr.ErrorMessage{}
		if err := json.Unmarshal([]byte(`{"detail": "Authentication credentials were not provided."}`), &em); err != nil {
			t.Fatal(err)
		}
		if em.Detail != "Authentication credentials were not provided." || em.Err != "" {
			t.Errorf("unexpected decoded value: %+v", em)
		}
	})
}
