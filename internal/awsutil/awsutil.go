// Package awsutil holds helpers shared by the AWS-backed adapters.
package awsutil

import (
	"errors"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// ErrorFields flattens an AWS SDK error into log fields: the failing service
// and operation, the API error code and message, and the HTTP status and
// request id when the service answered.
func ErrorFields(err error) []zap.Field {
	if err == nil {
		return nil
	}
	fields := []zap.Field{zap.Error(err)}

	var opErr *smithy.OperationError
	if errors.As(err, &opErr) {
		fields = append(fields,
			zap.String("aws_service", opErr.ServiceID),
			zap.String("aws_operation", opErr.OperationName),
		)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		fields = append(fields,
			zap.String("aws_error_code", apiErr.ErrorCode()),
			zap.String("aws_error_message", apiErr.ErrorMessage()),
			zap.String("aws_error_fault", apiErr.ErrorFault().String()),
		)
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		fields = append(fields,
			zap.Int("aws_http_status", respErr.HTTPStatusCode()),
			zap.String("aws_request_id", respErr.ServiceRequestID()),
		)
	}
	return fields
}

// LogError logs msg with the detail of an AWS SDK error at error level.
func LogError(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	if logger == nil {
		return
	}
	logger.Error(msg, append(fields, ErrorFields(err)...)...)
}
