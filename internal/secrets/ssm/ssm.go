// Package ssmstore resolves secrets from AWS Systems Manager Parameter Store.
package ssmstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/awsutil"
	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/secrets"
)

// API is the subset of the SSM client used by Store.
type API interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Store reads SecureString parameters under a fixed prefix.
type Store struct {
	client API
	prefix string
	logger *zap.Logger
}

// New creates a parameter store backed SecretStore.
func New(client API, prefix string, logger *zap.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("ssm client is required")
	}
	if prefix == "" {
		prefix = secrets.DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, prefix: prefix, logger: logger}, nil
}

// Get returns the decrypted value of prefix+name.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	path := s.prefix + name
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		awsutil.LogError(s.logger, "failed to get parameter", err, zap.String("parameter", path))
		return "", fmt.Errorf("%w: get parameter %s: %w", crawler.ErrSecretRetrieval, path, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("%w: parameter %s is missing", crawler.ErrSecretRetrieval, path)
	}
	value := aws.ToString(out.Parameter.Value)
	if value == "" {
		return "", fmt.Errorf("%w: parameter %s is empty", crawler.ErrSecretRetrieval, path)
	}
	return value, nil
}
