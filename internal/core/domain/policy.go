package domain

import "fmt"

// FailurePolicy decides how the pipeline treats a single file that cannot
// be fetched or extracted. It is an explicit configuration choice; there is
// no silent default beyond what the config layer declares.
type FailurePolicy string

const (
	// PolicyStrict aborts the whole request on the first file failure.
	PolicyStrict FailurePolicy = "strict"

	// PolicyLenient skips the failing file and records a warning.
	PolicyLenient FailurePolicy = "lenient"
)

// ParseFailurePolicy validates a policy string from configuration.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case PolicyStrict, PolicyLenient:
		return FailurePolicy(s), nil
	}
	return "", fmt.Errorf("%w: unknown failure policy %q", ErrInvalidInput, s)
}
