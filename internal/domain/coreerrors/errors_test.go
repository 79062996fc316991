package coreerrors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrMalformedEnvelope", ErrMalformedEnvelope},
		{"ErrMissingBinding", ErrMissingBinding},
		{"ErrInvalidTransition", ErrInvalidTransition},
		{"ErrConcurrentTransition", ErrConcurrentTransition},
		{"ErrUnknownSaga", ErrUnknownSaga},
		{"ErrSagaTerminal", ErrSagaTerminal},
		{"ErrHandlerNotRegistered", ErrHandlerNotRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("%s should not be nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s should have a message", tt.name)
			}
		})
	}
}

func TestDomainError(t *testing.T) {
	underlying := errors.New("boom")
	de := NewDomainError("CODE", "message", underlying)

	if !errors.Is(de, underlying) {
		t.Error("errors.Is should unwrap to the underlying error")
	}
	if de.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", de.Unwrap(), underlying)
	}

	bare := NewDomainError("CODE", "message", nil)
	if bare.Unwrap() != nil {
		t.Error("Unwrap() should be nil without an underlying error")
	}
}

func TestConcurrencyError(t *testing.T) {
	err := NewConcurrencyError("saga", "C1", "stale version")
	if !IsConcurrencyError(err) {
		t.Error("IsConcurrencyError should recognize a *ConcurrencyError")
	}
	if IsConcurrencyError(errors.New("other")) {
		t.Error("IsConcurrencyError should reject unrelated errors")
	}
	if IsConcurrencyError(nil) {
		t.Error("IsConcurrencyError should reject nil")
	}
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"concurrent transition is recoverable", ErrConcurrentTransition, true},
		{"wrapped concurrent transition is recoverable", NewDomainError("X", "y", ErrConcurrentTransition), true},
		{"invalid transition is not recoverable", ErrInvalidTransition, false},
		{"unknown saga is not recoverable", ErrUnknownSaga, false},
		{"arbitrary error is not recoverable", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recoverable(tt.err); got != tt.want {
				t.Errorf("Recoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}
