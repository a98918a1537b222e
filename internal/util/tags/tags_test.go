package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderDefaults(t *testing.T) {
	got := NewBuilder("ec2-20260824-120000-abcd1234").Build()

	assert.Equal(t, map[string]string{
		KeySession: "ec2-20260824-120000-abcd1234",
		KeyPurpose: PurposeBaselineTesting,
	}, got)
}

func TestBuilderChaining(t *testing.T) {
	got := NewBuilder("s1").
		WithName("security-test-s1-0").
		WithRequirement(3).
		Merge(map[string]string{"Team": "platform"}).
		Build()

	assert.Equal(t, "s1", got[KeySession])
	assert.Equal(t, "security-test-s1-0", got[KeyName])
	assert.Equal(t, "3", got[KeyRequirement])
	assert.Equal(t, "platform", got["Team"])
}

func TestBuildReturnsCopy(t *testing.T) {
	b := NewBuilder("s1")
	first := b.Build()
	first[KeySession] = "tampered"

	assert.Equal(t, "s1", b.Build()[KeySession])
}

func TestSessionSelector(t *testing.T) {
	assert.Equal(t, map[string]string{KeySession: "s1"}, SessionSelector("s1"))
}
