// Package tags provides consistent tagging for test infrastructure.
//
// Every resource provisioned during a session carries the session id and a
// purpose tag. Those tags are the only durable record of what must
// eventually be reclaimed, so the builder is the single place where tag
// keys are defined.
package tags

import "fmt"

// Standard tag keys stamped on every provisioned resource.
const (
	// KeySession identifies which session a resource belongs to.
	KeySession = "SessionId"

	// KeyPurpose marks resources as disposable baseline-test infrastructure.
	KeyPurpose = "Purpose"

	// KeyName is the provider's display-name tag.
	KeyName = "Name"

	// KeyRequirement carries the index of the requirement under test.
	KeyRequirement = "RequirementIndex"
)

// PurposeBaselineTesting is the purpose value for all session resources.
const PurposeBaselineTesting = "SecurityBaseline-Testing"

// Builder provides a fluent interface for building resource tags.
type Builder struct {
	tags map[string]string
}

// NewBuilder creates a builder with the session id and purpose pre-set.
func NewBuilder(sessionID string) *Builder {
	return &Builder{
		tags: map[string]string{
			KeySession: sessionID,
			KeyPurpose: PurposeBaselineTesting,
		},
	}
}

// WithName adds the display-name tag.
func (b *Builder) WithName(name string) *Builder {
	b.tags[KeyName] = name
	return b
}

// WithRequirement adds the requirement index tag.
func (b *Builder) WithRequirement(index int) *Builder {
	b.tags[KeyRequirement] = fmt.Sprintf("%d", index)
	return b
}

// Merge adds all tags from the provided map.
func (b *Builder) Merge(extra map[string]string) *Builder {
	for k, v := range extra {
		b.tags[k] = v
	}
	return b
}

// Build returns a copy of the tag map.
func (b *Builder) Build() map[string]string {
	out := make(map[string]string, len(b.tags))
	for k, v := range b.tags {
		out[k] = v
	}
	return out
}

// SessionSelector returns the tag pair identifying all resources of a
// session, used by sweep-style reclamation.
func SessionSelector(sessionID string) map[string]string {
	return map[string]string{KeySession: sessionID}
}
