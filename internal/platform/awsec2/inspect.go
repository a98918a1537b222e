package awsec2

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/secbase/secbase/internal/baseline"
	"github.com/secbase/secbase/internal/util/poll"
)

// Inspect gathers the observed facts validation checks assert against:
// instance state, addressing, metadata service settings, root volume
// encryption, and the security boundary's ingress rules.
func (c *Client) Inspect(ctx context.Context, set *baseline.ResourceSet) (*baseline.InstanceDetails, error) {
	if set == nil || set.InstanceID == "" {
		return nil, fmt.Errorf("no instance to inspect")
	}

	instance, err := c.describeInstance(ctx, set.InstanceID)
	if err != nil {
		return nil, err
	}

	details := &baseline.InstanceDetails{
		State:                string(instance.State.Name),
		PrivateIP:            aws.ToString(instance.PrivateIpAddress),
		PublicIP:             aws.ToString(instance.PublicIpAddress),
		PublicIPAddressGiven: aws.ToString(instance.PublicIpAddress) != "",
	}
	if md := instance.MetadataOptions; md != nil {
		details.Metadata = baseline.MetadataOptions{
			HTTPTokens:   string(md.HttpTokens),
			HTTPEndpoint: string(md.HttpEndpoint),
			HopLimit:     aws.ToInt32(md.HttpPutResponseHopLimit),
		}
	}

	if encrypted, err := c.rootVolumeEncrypted(ctx, instance); err != nil {
		return nil, err
	} else {
		details.RootVolumeEncrypted = encrypted
	}

	if set.BoundaryID != "" {
		rules, err := c.ingressRules(ctx, set.BoundaryID)
		if err != nil {
			return nil, err
		}
		details.IngressRules = rules
	}
	return details, nil
}

func (c *Client) describeInstance(ctx context.Context, instanceID string) (*types.Instance, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}
	for _, res := range out.Reservations {
		for i := range res.Instances {
			return &res.Instances[i], nil
		}
	}
	return nil, fmt.Errorf("instance %s: %w", instanceID, errInstanceMissing)
}

// errInstanceMissing marks a describe that returned no reservations, which
// happens shortly after termination completes.
var errInstanceMissing = errors.New("instance not found")

// rootVolumeEncrypted resolves the root EBS volume and reads its
// encryption flag.
func (c *Client) rootVolumeEncrypted(ctx context.Context, instance *types.Instance) (bool, error) {
	rootDevice := aws.ToString(instance.RootDeviceName)
	var volumeID string
	for _, bdm := range instance.BlockDeviceMappings {
		if bdm.Ebs == nil {
			continue
		}
		if aws.ToString(bdm.DeviceName) == rootDevice || volumeID == "" {
			volumeID = aws.ToString(bdm.Ebs.VolumeId)
		}
	}
	if volumeID == "" {
		return false, nil
	}

	out, err := c.ec2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: []string{volumeID}})
	if err != nil {
		return false, fmt.Errorf("failed to describe root volume %s: %w", volumeID, err)
	}
	if len(out.Volumes) == 0 {
		return false, nil
	}
	return aws.ToBool(out.Volumes[0].Encrypted), nil
}

// ingressRules flattens the security group's inbound permissions.
func (c *Client) ingressRules(ctx context.Context, groupID string) ([]baseline.IngressRule, error) {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{groupID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe security group %s: %w", groupID, err)
	}

	var rules []baseline.IngressRule
	for _, group := range out.SecurityGroups {
		for _, perm := range group.IpPermissions {
			for _, r := range perm.IpRanges {
				rules = append(rules, baseline.IngressRule{
					Protocol: aws.ToString(perm.IpProtocol),
					FromPort: aws.ToInt32(perm.FromPort),
					ToPort:   aws.ToInt32(perm.ToPort),
					CIDR:     aws.ToString(r.CidrIp),
				})
			}
		}
	}
	return rules, nil
}

// pollInstanceState waits until the instance reports the wanted state. An
// already-absent instance counts as terminated.
func (c *Client) pollInstanceState(ctx context.Context, instanceID string, timeout time.Duration, want types.InstanceStateName) error {
	return poll.Until(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		instance, err := c.describeInstance(ctx, instanceID)
		if err != nil {
			if want == types.InstanceStateNameTerminated && (IsNotFound(err) || errors.Is(err, errInstanceMissing)) {
				return true, nil
			}
			return false, err
		}
		state := instance.State.Name
		if state == want {
			return true, nil
		}
		// A provisioning wait cannot recover once the instance is on its
		// way out.
		if want == types.InstanceStateNameRunning &&
			(state == types.InstanceStateNameTerminated || state == types.InstanceStateNameShuttingDown) {
			return false, errors.New("instance terminated while waiting for running state")
		}
		return false, nil
	})
}
