package naming

import "fmt"

// Naming functions for session-scoped test resources.
// All resources follow consistent naming patterns so that leftovers are
// recognizable in a cloud console even without tag filtering.

func Instance(sessionID string, index int) string {
	return fmt.Sprintf("security-test-%s-%d", sessionID, index)
}

func Network(sessionID string) string {
	return fmt.Sprintf("test-vpc-%s", sessionID)
}

func SecurityBoundary(sessionID string, index int) string {
	return fmt.Sprintf("test-sg-%s-%d", sessionID, index)
}

func Subnet(sessionID string) string {
	return fmt.Sprintf("subnet-%s", sessionID)
}

func Gateway(sessionID string) string {
	return fmt.Sprintf("igw-%s", sessionID)
}
