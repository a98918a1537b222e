package awsec2

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// IsNotFound reports whether err means the resource is already gone.
// Reclamation treats these as success: the desired end state is reached.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	switch code {
	case "InvalidInstanceID.NotFound",
		"InvalidVpcID.NotFound",
		"InvalidGroup.NotFound",
		"InvalidSubnetID.NotFound",
		"InvalidInternetGatewayID.NotFound",
		"InvalidRouteTableID.NotFound",
		"Gateway.NotAttached",
		"NoSuchBucket",
		"NoSuchTagSet":
		return true
	}
	return strings.HasSuffix(code, ".NotFound")
}

// IsDependencyViolation reports whether err means the resource is still in
// use. Teardown retries these: dependent resources release asynchronously.
func IsDependencyViolation(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "DependencyViolation"
}
