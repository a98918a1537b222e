package awsec2

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/baseline"
	"github.com/secbase/secbase/internal/util/naming"
	"github.com/secbase/secbase/internal/util/tags"
)

const (
	networkCIDR = "10.0.0.0/16"
	subnetCIDR  = "10.0.1.0/24"
	anyCIDR     = "0.0.0.0/0"
)

// Deploy provisions an isolated test stack for one requirement attempt: a
// VPC with gateway and subnet, a security group, and an instance configured
// from the requirement's configuration document.
//
// The returned set is filled incrementally, so on error it carries the
// handles of whatever was created before the failure and the caller must
// still reclaim it.
func (c *Client) Deploy(ctx context.Context, req *baseline.Requirement, session baseline.Session, index int) (*baseline.ResourceSet, error) {
	set := &baseline.ResourceSet{}
	build := tags.NewBuilder(session.ID).WithRequirement(index)

	log := c.log.With(zap.String("session_id", session.ID), zap.Int("requirement", index))
	log.Info("provisioning test infrastructure", zap.String("objective", req.Objective))

	vpc, err := c.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(networkCIDR),
		TagSpecifications: tagSpec(types.ResourceTypeVpc, build.WithName(naming.Network(session.ID)).Build()),
	})
	if err != nil {
		return set, fmt.Errorf("failed to create VPC: %w", err)
	}
	set.NetworkID = aws.ToString(vpc.Vpc.VpcId)

	for _, attr := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: vpc.Vpc.VpcId, EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: vpc.Vpc.VpcId, EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if _, err := c.ec2.ModifyVpcAttribute(ctx, attr); err != nil {
			return set, fmt.Errorf("failed to configure VPC DNS attributes: %w", err)
		}
	}

	igw, err := c.ec2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: tagSpec(types.ResourceTypeInternetGateway, build.WithName(naming.Gateway(session.ID)).Build()),
	})
	if err != nil {
		return set, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	set.GatewayID = aws.ToString(igw.InternetGateway.InternetGatewayId)

	if _, err := c.ec2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: igw.InternetGateway.InternetGatewayId,
		VpcId:             vpc.Vpc.VpcId,
	}); err != nil {
		return set, fmt.Errorf("failed to attach internet gateway: %w", err)
	}

	subnet, err := c.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             vpc.Vpc.VpcId,
		CidrBlock:         aws.String(subnetCIDR),
		TagSpecifications: tagSpec(types.ResourceTypeSubnet, build.WithName(naming.Subnet(session.ID)).Build()),
	})
	if err != nil {
		return set, fmt.Errorf("failed to create subnet: %w", err)
	}
	set.SubnetID = aws.ToString(subnet.Subnet.SubnetId)

	if err := c.routeToGateway(ctx, set.NetworkID, set.GatewayID); err != nil {
		return set, err
	}

	sg, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(naming.SecurityBoundary(session.ID, index)),
		Description:       aws.String("Security baseline test group"),
		VpcId:             vpc.Vpc.VpcId,
		TagSpecifications: tagSpec(types.ResourceTypeSecurityGroup, build.WithName(naming.SecurityBoundary(session.ID, index)).Build()),
	})
	if err != nil {
		return set, fmt.Errorf("failed to create security group: %w", err)
	}
	set.BoundaryID = aws.ToString(sg.GroupId)

	// Management access only from inside the test network.
	if _, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: sg.GroupId,
		IpPermissions: []types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(22),
			ToPort:     aws.Int32(22),
			IpRanges:   []types.IpRange{{CidrIp: aws.String(networkCIDR), Description: aws.String("intra-VPC management")}},
		}},
	}); err != nil {
		return set, fmt.Errorf("failed to authorize security group ingress: %w", err)
	}

	run, err := c.ec2.RunInstances(ctx, c.runInput(req, session, index, set))
	if err != nil {
		return set, fmt.Errorf("failed to launch instance: %w", err)
	}
	set.InstanceID = aws.ToString(run.Instances[0].InstanceId)

	if err := c.waitInstanceRunning(ctx, set.InstanceID); err != nil {
		return set, err
	}
	log.Info("instance running", zap.String("instance_id", set.InstanceID))

	details, err := c.Inspect(ctx, set)
	if err != nil {
		return set, fmt.Errorf("failed to inspect provisioned instance: %w", err)
	}
	set.Details = details
	return set, nil
}

// runInput maps the requirement's configuration document onto the launch
// request. Unrecognized keys are ignored; security-relevant defaults lean
// restrictive (no public IP unless asked for).
func (c *Client) runInput(req *baseline.Requirement, session baseline.Session, index int, set *baseline.ResourceSet) *ec2.RunInstancesInput {
	cfg := req.Configuration

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(c.imageID),
		InstanceType: instanceTypeFrom(cfg),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		NetworkInterfaces: []types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              aws.Int32(0),
			SubnetId:                 aws.String(set.SubnetID),
			Groups:                   []string{set.BoundaryID},
			AssociatePublicIpAddress: aws.Bool(configBool(cfg, "AssociatePublicIpAddress")),
		}},
		TagSpecifications: tagSpec(types.ResourceTypeInstance,
			tags.NewBuilder(session.ID).WithRequirement(index).WithName(naming.Instance(session.ID, index)).Build()),
	}

	if md := metadataOptionsFrom(cfg); md != nil {
		input.MetadataOptions = md
	}
	if bdm := blockDeviceMappingsFrom(cfg); bdm != nil {
		input.BlockDeviceMappings = bdm
	}
	if configBool(cfg, "EbsOptimized") {
		input.EbsOptimized = aws.Bool(true)
	}
	return input
}

// routeToGateway adds the default route to the VPC's main route table.
func (c *Client) routeToGateway(ctx context.Context, vpcID, gatewayID string) error {
	rts, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	})
	if err != nil {
		return fmt.Errorf("failed to describe route tables: %w", err)
	}
	if len(rts.RouteTables) == 0 {
		return fmt.Errorf("no route table found for VPC %s", vpcID)
	}

	if _, err := c.ec2.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         rts.RouteTables[0].RouteTableId,
		DestinationCidrBlock: aws.String(anyCIDR),
		GatewayId:            aws.String(gatewayID),
	}); err != nil {
		return fmt.Errorf("failed to create default route: %w", err)
	}
	return nil
}

// metadataOptionsFrom builds the metadata service request from the
// configuration's MetadataOptions section, if present.
func metadataOptionsFrom(cfg map[string]any) *types.InstanceMetadataOptionsRequest {
	section, ok := cfg["MetadataOptions"].(map[string]any)
	if !ok {
		return nil
	}
	opts := &types.InstanceMetadataOptionsRequest{}
	if v, ok := section["HttpTokens"].(string); ok {
		opts.HttpTokens = types.HttpTokensState(v)
	}
	if v, ok := section["HttpEndpoint"].(string); ok {
		opts.HttpEndpoint = types.InstanceMetadataEndpointState(v)
	}
	if n, ok := configInt(section, "HttpPutResponseHopLimit"); ok {
		opts.HttpPutResponseHopLimit = aws.Int32(n)
	}
	return opts
}

// blockDeviceMappingsFrom builds root volume mappings. A bare Encrypted
// flag or any BlockDeviceMappings section yields an encrypted gp3 root.
func blockDeviceMappingsFrom(cfg map[string]any) []types.BlockDeviceMapping {
	_, hasMappings := cfg["BlockDeviceMappings"]
	encrypted := configBool(cfg, "Encrypted")
	if !hasMappings && !encrypted {
		return nil
	}
	return []types.BlockDeviceMapping{{
		DeviceName: aws.String("/dev/xvda"),
		Ebs: &types.EbsBlockDevice{
			VolumeSize:          aws.Int32(8),
			VolumeType:          types.VolumeTypeGp3,
			Encrypted:           aws.Bool(true),
			DeleteOnTermination: aws.Bool(true),
		},
	}}
}

func instanceTypeFrom(cfg map[string]any) types.InstanceType {
	if v, ok := cfg["InstanceType"].(string); ok && v != "" {
		return types.InstanceType(v)
	}
	return types.InstanceTypeT3Micro
}

// configBool reads a boolean from a configuration document, absent or
// non-boolean values read as false.
func configBool(cfg map[string]any, key string) bool {
	v, _ := cfg[key].(bool)
	return v
}

// configInt reads an integer that may arrive as a JSON float64, a YAML int,
// or an int32 from a prior refinement.
func configInt(cfg map[string]any, key string) (int32, bool) {
	switch v := cfg[key].(type) {
	case int:
		return int32(v), true
	case int32:
		return v, true
	case int64:
		return int32(v), true
	case float64:
		return int32(v), true
	default:
		return 0, false
	}
}

// waitInstanceRunning polls until the instance reports running.
func (c *Client) waitInstanceRunning(ctx context.Context, instanceID string) error {
	err := c.pollInstanceState(ctx, instanceID, c.timeouts.InstanceRunning, types.InstanceStateNameRunning)
	if err != nil {
		return fmt.Errorf("instance %s did not reach running state: %w", instanceID, err)
	}
	return nil
}

func tagSpec(resourceType types.ResourceType, tagMap map[string]string) []types.TagSpecification {
	keys := make([]string, 0, len(tagMap))
	for k := range tagMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ec2Tags := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		ec2Tags = append(ec2Tags, types.Tag{Key: aws.String(k), Value: aws.String(tagMap[k])})
	}
	return []types.TagSpecification{{ResourceType: resourceType, Tags: ec2Tags}}
}
