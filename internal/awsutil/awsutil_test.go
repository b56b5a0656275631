package awsutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func fieldMap(t *testing.T, err error) map[string]any {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	LogError(zap.New(core), "aws call failed", err)
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	return entries[0].ContextMap()
}

func TestErrorFieldsOperationAndAPIError(t *testing.T) {
	t.Parallel()

	err := &smithy.OperationError{
		ServiceID:     "SSM",
		OperationName: "GetParameter",
		Err: &smithy.GenericAPIError{
			Code:    "ParameterNotFound",
			Message: "no such parameter",
			Fault:   smithy.FaultClient,
		},
	}
	got := fieldMap(t, fmt.Errorf("read secret: %w", err))
	assert.Equal(t, "SSM", got["aws_service"])
	assert.Equal(t, "GetParameter", got["aws_operation"])
	assert.Equal(t, "ParameterNotFound", got["aws_error_code"])
	assert.Equal(t, "no such parameter", got["aws_error_message"])
	assert.Equal(t, "client", got["aws_error_fault"])
}

func TestErrorFieldsPlainError(t *testing.T) {
	t.Parallel()

	got := fieldMap(t, errors.New("dial tcp: timeout"))
	assert.Equal(t, "dial tcp: timeout", got["error"])
	assert.NotContains(t, got, "aws_service")
	assert.Nil(t, ErrorFields(nil))
	LogError(nil, "ignored", errors.New("x"))
}
