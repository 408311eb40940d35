package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BucketAPI is the S3 surface used for the remote-state backend.
type BucketAPI interface {
	s3.ListObjectVersionsAPIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// BucketExists probes for the state bucket.
func BucketExists(ctx context.Context, api BucketAPI, name string) (bool, error) {
	_, err := api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe bucket %s: %w", name, err)
	}
	return true, nil
}

// EnsureBucket creates the state bucket if it does not exist and enables
// versioning on it. Versioning protects remote state history against
// accidental overwrites.
func EnsureBucket(ctx context.Context, api BucketAPI, name, region string) (created bool, err error) {
	exists, err := BucketExists(ctx, api, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 rejects an explicit location constraint.
	if region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	if _, err := api.CreateBucket(ctx, input); err != nil {
		return false, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}

	_, err = api.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(name),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return true, fmt.Errorf("bucket %s created but versioning failed: %w", name, err)
	}

	return true, nil
}

// DeleteBucket empties and deletes the state bucket. The bucket is
// versioned, so every object version and delete marker must be removed by
// VersionId; a plain object sweep only writes new delete markers and the
// bucket delete then fails with BucketNotEmpty. Individual deletion
// failures are collected into the final error rather than aborting the
// sweep.
func DeleteBucket(ctx context.Context, api BucketAPI, name string) error {
	paginator := s3.NewListObjectVersionsPaginator(api, &s3.ListObjectVersionsInput{
		Bucket: aws.String(name),
	})

	var failed int
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to list object versions in %s: %w", name, err)
		}

		for _, v := range page.Versions {
			failed += deleteVersion(ctx, api, name, v.Key, v.VersionId)
		}
		for _, m := range page.DeleteMarkers {
			failed += deleteVersion(ctx, api, name, m.Key, m.VersionId)
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to delete %d object versions from bucket %s", failed, name)
	}

	if _, err := api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete bucket %s: %w", name, err)
	}
	return nil
}

func deleteVersion(ctx context.Context, api BucketAPI, bucket string, key, versionID *string) int {
	_, err := api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:    aws.String(bucket),
		Key:       key,
		VersionId: versionID,
	})
	if err != nil {
		return 1
	}
	return 0
}
