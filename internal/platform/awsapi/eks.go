package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
)

// ClusterAPI is the EKS surface used for cluster and add-on probes.
type ClusterAPI interface {
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	DescribeNodegroup(ctx context.Context, params *eks.DescribeNodegroupInput, optFns ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error)
	DescribeAddon(ctx context.Context, params *eks.DescribeAddonInput, optFns ...func(*eks.Options)) (*eks.DescribeAddonOutput, error)
	CreateAddon(ctx context.Context, params *eks.CreateAddonInput, optFns ...func(*eks.Options)) (*eks.CreateAddonOutput, error)
	DeleteAddon(ctx context.Context, params *eks.DeleteAddonInput, optFns ...func(*eks.Options)) (*eks.DeleteAddonOutput, error)
}

// ClusterStatus returns the EKS cluster status, or "" when the cluster does
// not exist.
func ClusterStatus(ctx context.Context, api ClusterAPI, name string) (string, error) {
	out, err := api.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to describe cluster %s: %w", name, err)
	}
	return string(out.Cluster.Status), nil
}

// ClusterActive reports whether the cluster exists and is ACTIVE.
func ClusterActive(ctx context.Context, api ClusterAPI, name string) (bool, error) {
	status, err := ClusterStatus(ctx, api, name)
	if err != nil {
		return false, err
	}
	return status == string(ekstypes.ClusterStatusActive), nil
}

// ClusterAbsent reports whether the cluster no longer exists. Used as the
// teardown readiness condition.
func ClusterAbsent(ctx context.Context, api ClusterAPI, name string) (bool, error) {
	status, err := ClusterStatus(ctx, api, name)
	if err != nil {
		return false, err
	}
	return status == "", nil
}

// NodegroupActive reports whether the managed nodegroup is ACTIVE.
func NodegroupActive(ctx context.Context, api ClusterAPI, cluster, nodegroup string) (bool, error) {
	out, err := api.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(cluster),
		NodegroupName: aws.String(nodegroup),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe nodegroup %s/%s: %w", cluster, nodegroup, err)
	}
	return out.Nodegroup.Status == ekstypes.NodegroupStatusActive, nil
}

// AddonActive reports whether the named EKS add-on is ACTIVE.
func AddonActive(ctx context.Context, api ClusterAPI, cluster, addon string) (bool, error) {
	out, err := api.DescribeAddon(ctx, &eks.DescribeAddonInput{
		ClusterName: aws.String(cluster),
		AddonName:   aws.String(addon),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe addon %s/%s: %w", cluster, addon, err)
	}
	return out.Addon.Status == ekstypes.AddonStatusActive, nil
}

// AddonExists reports whether the add-on is installed at all, regardless of
// its activation status.
func AddonExists(ctx context.Context, api ClusterAPI, cluster, addon string) (bool, error) {
	_, err := api.DescribeAddon(ctx, &eks.DescribeAddonInput{
		ClusterName: aws.String(cluster),
		AddonName:   aws.String(addon),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe addon %s/%s: %w", cluster, addon, err)
	}
	return true, nil
}

// EnsureAddon installs the add-on if it is not present. Existing
// self-managed installations are overwritten rather than conflicting.
func EnsureAddon(ctx context.Context, api ClusterAPI, cluster, addon, version string) (created bool, err error) {
	exists, err := AddonExists(ctx, api, cluster, addon)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	input := &eks.CreateAddonInput{
		ClusterName:      aws.String(cluster),
		AddonName:        aws.String(addon),
		ResolveConflicts: ekstypes.ResolveConflictsOverwrite,
	}
	if version != "" {
		input.AddonVersion = aws.String(version)
	}
	if _, err := api.CreateAddon(ctx, input); err != nil {
		return false, fmt.Errorf("failed to create addon %s on %s: %w", addon, cluster, err)
	}
	return true, nil
}

// RemoveAddon uninstalls the add-on, tolerating absence.
func RemoveAddon(ctx context.Context, api ClusterAPI, cluster, addon string) error {
	_, err := api.DeleteAddon(ctx, &eks.DeleteAddonInput{
		ClusterName: aws.String(cluster),
		AddonName:   aws.String(addon),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete addon %s from %s: %w", addon, cluster, err)
	}
	return nil
}
