package enums

import "fmt"

// ConflictPolicy selects how diverging item quantities are resolved
// during a merge.
type ConflictPolicy string

const (
	ConflictPolicyLocalWins       ConflictPolicy = "local_wins"
	ConflictPolicyServerWins      ConflictPolicy = "server_wins"
	ConflictPolicyMergeQuantities ConflictPolicy = "merge_quantities"
	ConflictPolicyMergeSmart      ConflictPolicy = "merge_smart"

	// ConflictPolicyPromptUser is accepted but resolves like merge_smart;
	// the merge never suspends waiting for a human. Observers still receive
	// the conflict event so a UI can surface it afterwards.
	ConflictPolicyPromptUser ConflictPolicy = "prompt_user"
)

var validConflictPolicies = []ConflictPolicy{
	ConflictPolicyLocalWins,
	ConflictPolicyServerWins,
	ConflictPolicyMergeQuantities,
	ConflictPolicyMergeSmart,
	ConflictPolicyPromptUser,
}

// String implements fmt.Stringer.
func (c ConflictPolicy) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConflictPolicy.
func (c ConflictPolicy) IsValid() bool {
	for _, candidate := range validConflictPolicies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConflictPolicy converts raw input into a ConflictPolicy.
func ParseConflictPolicy(value string) (ConflictPolicy, error) {
	for _, candidate := range validConflictPolicies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conflict policy %q", value)
}
