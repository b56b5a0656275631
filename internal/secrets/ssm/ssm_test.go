package ssmstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// mockSSMMiddleware short-circuits the call before serialization and records
// the input.
func mockSSMMiddleware(output any, err error, seen *[]*ssm.GetParameterInput) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Initialize.Add(
			middleware.InitializeMiddlewareFunc("MockMiddleware", func(
				_ context.Context, in middleware.InitializeInput, _ middleware.InitializeHandler,
			) (middleware.InitializeOutput, middleware.Metadata, error) {
				if p, ok := in.Parameters.(*ssm.GetParameterInput); ok && seen != nil {
					*seen = append(*seen, p)
				}
				return middleware.InitializeOutput{Result: output}, middleware.Metadata{}, err
			}),
			middleware.Before,
		)
	}
}

func newClient(output any, err error, seen *[]*ssm.GetParameterInput) *ssm.Client {
	return ssm.NewFromConfig(aws.Config{Region: "us-west-2"}, func(o *ssm.Options) {
		o.APIOptions = append(o.APIOptions, mockSSMMiddleware(output, err, seen))
	})
}

func TestGetResolvesPrefixedName(t *testing.T) {
	t.Parallel()

	var seen []*ssm.GetParameterInput
	client := newClient(&ssm.GetParameterOutput{
		Parameter: &types.Parameter{Value: aws.String("hunter2")},
	}, nil, &seen)

	store, err := New(client, "", zap.NewNop())
	require.NoError(t, err)
	got, err := store.Get(context.Background(), "Webs/Password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.Len(t, seen, 1)
	assert.Equal(t, "/GovScout/Webs/Password", aws.ToString(seen[0].Name))
	assert.True(t, aws.ToBool(seen[0].WithDecryption))
}

func TestGetFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output any
		err    error
	}{
		{name: "api error", err: errors.New("ParameterNotFound")},
		{name: "missing parameter", output: &ssm.GetParameterOutput{}},
		{name: "empty value", output: &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String("")}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store, err := New(newClient(tc.output, tc.err, nil), "/Test/", nil)
			require.NoError(t, err)
			_, err = store.Get(context.Background(), "Webs/Username")
			require.Error(t, err)
			assert.ErrorIs(t, err, crawler.ErrSecretRetrieval)
			assert.Contains(t, err.Error(), "/Test/Webs/Username")
		})
	}
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "", nil)
	assert.Error(t, err)
}
