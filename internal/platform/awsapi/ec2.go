package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// NetworkAPI is the EC2 surface used for network probes.
type NetworkAPI interface {
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
}

// VPCExists probes for a VPC carrying the given Name tag. The VPC itself is
// created by the declarative network plan; this only observes the result.
func VPCExists(ctx context.Context, api NetworkAPI, nameTag string) (bool, error) {
	out, err := api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{nameTag}},
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to describe VPCs: %w", err)
	}
	return len(out.Vpcs) > 0, nil
}

// VPCAbsent reports whether no VPC with the given Name tag remains.
func VPCAbsent(ctx context.Context, api NetworkAPI, nameTag string) (bool, error) {
	exists, err := VPCExists(ctx, api, nameTag)
	if err != nil {
		return false, err
	}
	return !exists, nil
}
