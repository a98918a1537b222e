package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	const session = "ec2-20260824-120000-abcd1234"

	assert.Equal(t, "security-test-"+session+"-0", Instance(session, 0))
	assert.Equal(t, "test-vpc-"+session, Network(session))
	assert.Equal(t, "test-sg-"+session+"-2", SecurityBoundary(session, 2))
	assert.Equal(t, "subnet-"+session, Subnet(session))
	assert.Equal(t, "igw-"+session, Gateway(session))
}
