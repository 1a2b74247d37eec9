package cerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"bare kinded error", New(TransientInfra, base), TransientInfra},
		{"wrapped kinded error", fmt.Errorf("outer: %w", New(DeployFail, base)), DeployFail},
		{"plain error", base, Internal},
		{"newf", Newf(SchemaFail, "decode %q: %w", "x", base), SchemaFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsMatchesThroughChain(t *testing.T) {
	err := fmt.Errorf("phase run: %w", New(WorkflowDeadline, errors.New("missed tasks")))
	assert.True(t, Is(err, WorkflowDeadline))
	assert.False(t, Is(err, TransientInfra))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := New(TransientInfra, cause)
	assert.True(t, errors.Is(err, cause))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(TransientInfra, nil)))
	assert.True(t, Retryable(New(ValidationFail, nil)))
	assert.True(t, Retryable(New(SchemaFail, nil)))
	assert.False(t, Retryable(New(BudgetExceeded, nil)))
	assert.False(t, Retryable(New(UserCancel, nil)))
	assert.False(t, Retryable(errors.New("plain")))
}
