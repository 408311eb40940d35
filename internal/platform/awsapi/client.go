// Package awsapi wraps the AWS SDK clients the pipeline depends on: STS for
// credential exchange, S3 for the remote-state backend, EKS and EC2 for
// idempotency and readiness probes. All callers receive narrow interfaces so
// tests can substitute stubs.
package awsapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// Clients bundles the concrete AWS service clients for one region.
type Clients struct {
	STS *sts.Client
	S3  *s3.Client
	EKS *eks.Client
	EC2 *ec2.Client
}

// NewClients builds service clients from the default credential chain.
// Credentials exported by a preceding assume-role exchange are picked up
// from the environment.
func NewClients(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return clientsFromConfig(cfg), nil
}

// NewAssumedClients builds service clients whose credentials come from an
// auto-refreshing assume-role provider, so long runs (cluster provisioning
// can take tens of minutes) do not outlive a fixed session token.
func NewAssumedClients(ctx context.Context, region, roleARN, sessionName string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
	})
	cfg.Credentials = aws.NewCredentialsCache(provider)
	return clientsFromConfig(cfg), nil
}

func clientsFromConfig(cfg aws.Config) *Clients {
	return &Clients{
		STS: sts.NewFromConfig(cfg),
		S3:  s3.NewFromConfig(cfg),
		EKS: eks.NewFromConfig(cfg),
		EC2: ec2.NewFromConfig(cfg),
	}
}

// IsNotFound reports whether err is an AWS "does not exist" answer.
// Absence is a normal answer for idempotency probes, not a failure.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchBucket", "ResourceNotFoundException", "404":
		return true
	}
	return false
}

// IsAccessDenied reports whether err is an authorization failure. Readiness
// polls treat these as fatal: waiting longer will not restore access.
func IsAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation", "ExpiredToken", "ExpiredTokenException":
		return true
	}
	return false
}

// String returns a pointer-safe dereference for optional SDK strings.
func String(s *string) string {
	return aws.ToString(s)
}
