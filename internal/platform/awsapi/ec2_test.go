package awsapi

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNetworkAPI struct {
	vpcs []ec2types.Vpc
	err  error
	in   *ec2.DescribeVpcsInput
}

func (s *stubNetworkAPI) DescribeVpcs(_ context.Context, params *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	s.in = params
	if s.err != nil {
		return nil, s.err
	}
	return &ec2.DescribeVpcsOutput{Vpcs: s.vpcs}, nil
}

func TestVPCExists(t *testing.T) {
	t.Parallel()
	api := &stubNetworkAPI{vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-0abc")}}}

	exists, err := VPCExists(context.Background(), api, "devops-vpc")

	require.NoError(t, err)
	assert.True(t, exists)
	require.NotNil(t, api.in)
	require.Len(t, api.in.Filters, 1)
	assert.Equal(t, "tag:Name", aws.ToString(api.in.Filters[0].Name))
	assert.Equal(t, []string{"devops-vpc"}, api.in.Filters[0].Values)
}

func TestVPCExists_NoMatch(t *testing.T) {
	t.Parallel()
	exists, err := VPCExists(context.Background(), &stubNetworkAPI{}, "devops-vpc")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVPCAbsent(t *testing.T) {
	t.Parallel()
	absent, err := VPCAbsent(context.Background(), &stubNetworkAPI{}, "devops-vpc")
	require.NoError(t, err)
	assert.True(t, absent)
}

func TestVPCExists_Error(t *testing.T) {
	t.Parallel()
	_, err := VPCExists(context.Background(), &stubNetworkAPI{err: apiError("UnauthorizedOperation")}, "devops-vpc")
	require.Error(t, err)
}
