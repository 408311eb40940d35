package awsapi

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// IdentityAPI is the STS surface used for credential checks and role
// assumption.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Credentials are temporary credentials produced by an assume-role exchange.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// VerifyCredentials confirms the ambient credentials are usable and returns
// the caller's account ID and ARN.
func VerifyCredentials(ctx context.Context, api IdentityAPI) (account, arn string, err error) {
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("credentials check failed: %w", err)
	}
	return aws.ToString(out.Account), aws.ToString(out.Arn), nil
}

// AssumeRole exchanges the ambient credentials for temporary ones scoped to
// the given role.
func AssumeRole(ctx context.Context, api IdentityAPI, roleARN, sessionName string, duration time.Duration) (Credentials, error) {
	out, err := api.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(duration.Seconds())),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to assume role %s: %w", roleARN, err)
	}

	creds := out.Credentials
	result := Credentials{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
	}
	if creds.Expiration != nil {
		result.Expires = *creds.Expiration
	}
	return result, nil
}

// Export writes the credentials into the process environment so that child
// processes (terraform) and subsequently built SDK clients use them. The
// credential lifetime is bounded by Expires; a run that outlives it fails on
// the next API call rather than renewing silently.
func (c Credentials) Export(setenv func(key, value string) error) error {
	vars := map[string]string{
		"AWS_ACCESS_KEY_ID":     c.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": c.SecretAccessKey,
		"AWS_SESSION_TOKEN":     c.SessionToken,
	}
	for key, value := range vars {
		if err := setenv(key, value); err != nil {
			return fmt.Errorf("failed to export %s: %w", key, err)
		}
	}
	return nil
}

// Expired reports whether the credentials are past their expiry at the
// given instant.
func (c Credentials) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && now.After(c.Expires)
}
