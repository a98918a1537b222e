package awsec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/secbase/secbase/internal/baseline"
	"github.com/secbase/secbase/internal/util/retry"
	"github.com/secbase/secbase/internal/util/tags"
)

// Reclaim tears down one attempt's resource set in dependency order:
// instance first, then the security group, gateway, subnet, and finally the
// VPC. Already-absent resources count as reclaimed; every other error is
// recorded in the report and teardown continues with the next resource.
func (c *Client) Reclaim(ctx context.Context, set *baseline.ResourceSet) baseline.CleanupReport {
	var report baseline.CleanupReport
	if set.Empty() {
		return report
	}

	if set.InstanceID != "" {
		c.reclaimInstance(ctx, set.InstanceID, &report)
	}
	if set.BoundaryID != "" {
		c.deleteWithRetry(ctx, &report, "security_group", set.BoundaryID, func() error {
			_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(set.BoundaryID)})
			return err
		})
	}
	if set.GatewayID != "" {
		c.reclaimGateway(ctx, set.GatewayID, set.NetworkID, &report)
	}
	if set.SubnetID != "" {
		c.deleteWithRetry(ctx, &report, "subnet", set.SubnetID, func() error {
			_, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(set.SubnetID)})
			return err
		})
	}
	if set.NetworkID != "" {
		c.deleteWithRetry(ctx, &report, "vpc", set.NetworkID, func() error {
			_, err := c.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(set.NetworkID)})
			return err
		})
	}
	return report
}

// reclaimInstance terminates the instance and waits for the terminated
// state so dependent deletes do not race the shutdown.
func (c *Client) reclaimInstance(ctx context.Context, instanceID string, report *baseline.CleanupReport) {
	_, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		if IsNotFound(err) {
			report.Add("instance", instanceID, "already_terminated")
			return
		}
		report.AddError("failed to terminate instance %s: %v", instanceID, err)
		return
	}

	if err := c.pollInstanceState(ctx, instanceID, c.timeouts.InstanceTerminated, types.InstanceStateNameTerminated); err != nil {
		report.AddError("instance %s did not reach terminated state: %v", instanceID, err)
		return
	}
	report.Add("instance", instanceID, "terminated")
}

// reclaimGateway detaches and deletes an internet gateway. A gateway that
// is already detached or gone counts as reclaimed.
func (c *Client) reclaimGateway(ctx context.Context, gatewayID, vpcID string, report *baseline.CleanupReport) {
	if vpcID != "" {
		if _, err := c.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(gatewayID),
			VpcId:             aws.String(vpcID),
		}); err != nil && !IsNotFound(err) {
			report.AddError("failed to detach internet gateway %s: %v", gatewayID, err)
		}
	}
	c.deleteWithRetry(ctx, report, "internet_gateway", gatewayID, func() error {
		_, err := c.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: aws.String(gatewayID)})
		return err
	})
}

// deleteWithRetry runs a delete, retrying dependency violations while the
// provider releases attachments. Not-found means the end state is already
// reached; any other error is fatal to the retry loop but only recorded.
func (c *Client) deleteWithRetry(ctx context.Context, report *baseline.CleanupReport, resourceType, id string, del func() error) {
	err := retry.Do(ctx, func() error {
		err := del()
		if err == nil || IsNotFound(err) {
			return nil
		}
		if IsDependencyViolation(err) {
			return err
		}
		return retry.Fatal(err)
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		report.AddError("failed to delete %s %s: %v", resourceType, id, err)
		return
	}
	report.Add(resourceType, id, "deleted")
}

// ReclaimSession sweeps everything tagged with the session id, independent
// of any tracked handles. It discovers instances, security groups,
// gateways, subnets, route tables, VPCs, and session-tagged S3 buckets, and
// is safe to run repeatedly.
func (c *Client) ReclaimSession(ctx context.Context, sessionID string) baseline.CleanupReport {
	var report baseline.CleanupReport
	log := c.log.With(zap.String("session_id", sessionID))
	log.Info("sweeping session resources")

	sessionFilter := types.Filter{
		Name:   aws.String("tag:" + tags.KeySession),
		Values: []string{sessionID},
	}

	c.sweepInstances(ctx, sessionFilter, &report)
	c.sweepSecurityGroups(ctx, sessionFilter, &report)
	c.sweepGateways(ctx, sessionFilter, &report)
	c.sweepSubnets(ctx, sessionFilter, &report)
	c.sweepRouteTables(ctx, sessionFilter, &report)
	c.sweepVPCs(ctx, sessionFilter, &report)
	c.sweepBuckets(ctx, sessionID, &report)

	log.Info("session sweep finished",
		zap.Int("reclaimed", len(report.Reclaimed)),
		zap.Int("errors", len(report.Errors)))
	return report
}

func (c *Client) sweepInstances(ctx context.Context, sessionFilter types.Filter, report *baseline.CleanupReport) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			sessionFilter,
			{Name: aws.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
		},
	})
	if err != nil {
		report.AddError("failed to list session instances: %v", err)
		return
	}

	var ids []string
	for _, res := range out.Reservations {
		for _, instance := range res.Instances {
			ids = append(ids, aws.ToString(instance.InstanceId))
		}
	}
	for _, id := range ids {
		c.reclaimInstance(ctx, id, report)
	}
}

func (c *Client) sweepSecurityGroups(ctx context.Context, sessionFilter types.Filter, report *baseline.CleanupReport) {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{sessionFilter},
	})
	if err != nil {
		report.AddError("failed to list session security groups: %v", err)
		return
	}
	for _, group := range out.SecurityGroups {
		if aws.ToString(group.GroupName) == "default" {
			continue
		}
		id := aws.ToString(group.GroupId)
		c.deleteWithRetry(ctx, report, "security_group", id, func() error {
			_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
			return err
		})
	}
}

func (c *Client) sweepGateways(ctx context.Context, sessionFilter types.Filter, report *baseline.CleanupReport) {
	out, err := c.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []types.Filter{sessionFilter},
	})
	if err != nil {
		report.AddError("failed to list session internet gateways: %v", err)
		return
	}
	for _, igw := range out.InternetGateways {
		id := aws.ToString(igw.InternetGatewayId)
		vpcID := ""
		if len(igw.Attachments) > 0 {
			vpcID = aws.ToString(igw.Attachments[0].VpcId)
		}
		c.reclaimGateway(ctx, id, vpcID, report)
	}
}

func (c *Client) sweepSubnets(ctx context.Context, sessionFilter types.Filter, report *baseline.CleanupReport) {
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []types.Filter{sessionFilter},
	})
	if err != nil {
		report.AddError("failed to list session subnets: %v", err)
		return
	}
	for _, subnet := range out.Subnets {
		id := aws.ToString(subnet.SubnetId)
		c.deleteWithRetry(ctx, report, "subnet", id, func() error {
			_, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(id)})
			return err
		})
	}
}

func (c *Client) sweepRouteTables(ctx context.Context, sessionFilter types.Filter, report *baseline.CleanupReport) {
	out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{sessionFilter},
	})
	if err != nil {
		report.AddError("failed to list session route tables: %v", err)
		return
	}
	for _, rt := range out.RouteTables {
		if isMainRouteTable(rt) {
			// The main table is deleted with its VPC.
			continue
		}
		id := aws.ToString(rt.RouteTableId)
		c.deleteWithRetry(ctx, report, "route_table", id, func() error {
			_, err := c.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(id)})
			return err
		})
	}
}

func isMainRouteTable(rt types.RouteTable) bool {
	for _, assoc := range rt.Associations {
		if aws.ToBool(assoc.Main) {
			return true
		}
	}
	return false
}

func (c *Client) sweepVPCs(ctx context.Context, sessionFilter types.Filter, report *baseline.CleanupReport) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []types.Filter{sessionFilter},
	})
	if err != nil {
		report.AddError("failed to list session VPCs: %v", err)
		return
	}
	for _, vpc := range out.Vpcs {
		id := aws.ToString(vpc.VpcId)
		c.deleteWithRetry(ctx, report, "vpc", id, func() error {
			_, err := c.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(id)})
			return err
		})
	}
}

// sweepBuckets empties and deletes S3 buckets tagged with the session id.
// Bucket tagging has no server-side filter, so every bucket's tag set is
// checked; untagged buckets are skipped.
func (c *Client) sweepBuckets(ctx context.Context, sessionID string, report *baseline.CleanupReport) {
	if c.s3 == nil {
		return
	}
	buckets, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		report.AddError("failed to list buckets: %v", err)
		return
	}

	for _, bucket := range buckets.Buckets {
		name := aws.ToString(bucket.Name)
		tagging, err := c.s3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)})
		if err != nil {
			// Untagged buckets return NoSuchTagSet.
			continue
		}
		if !hasSessionTag(tagging, sessionID) {
			continue
		}
		if err := c.emptyBucket(ctx, name); err != nil {
			report.AddError("failed to empty bucket %s: %v", name, err)
			continue
		}
		if _, err := c.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
			if !IsNotFound(err) {
				report.AddError("failed to delete bucket %s: %v", name, err)
				continue
			}
		}
		report.Add("s3_bucket", name, "deleted")
	}
}

func hasSessionTag(tagging *s3.GetBucketTaggingOutput, sessionID string) bool {
	for _, tag := range tagging.TagSet {
		if aws.ToString(tag.Key) == tags.KeySession && aws.ToString(tag.Value) == sessionID {
			return true
		}
	}
	return false
}

func (c *Client) emptyBucket(ctx context.Context, name string) error {
	var token *string
	for {
		page, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(name),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if _, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(name),
				Key:    obj.Key,
			}); err != nil {
				return fmt.Errorf("failed to delete object %s: %w", aws.ToString(obj.Key), err)
			}
		}
		if !aws.ToBool(page.IsTruncated) {
			return nil
		}
		token = page.NextContinuationToken
	}
}
