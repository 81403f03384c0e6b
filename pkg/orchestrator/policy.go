package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// Policy decides how the process outcome depends on the two duties.
type Policy string

const (
	// PolicyDetached keeps the responder serving after the primary duty ends
	// and exits only on process shutdown (or right away with
	// StopResponderOnExit). The process outcome is the primary duty's.
	PolicyDetached Policy = "detached"

	// PolicyJoint runs both duties as one unit: either failing fails the
	// process, and the responder is stopped when the primary duty ends.
	PolicyJoint Policy = "joint"

	// PolicyIsolated starts the responder with no shutdown linkage. Its
	// failures are logged and the process outcome is the primary duty's.
	PolicyIsolated Policy = "isolated"
)

// Policies lists every valid policy.
var Policies = []Policy{PolicyDetached, PolicyJoint, PolicyIsolated}

// ParsePolicy parses a policy name. The empty string is rejected.
func ParsePolicy(name string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case PolicyDetached, PolicyJoint, PolicyIsolated:
		return p, nil
	case "":
		return "", errors.New("completion policy is required (detached, joint or isolated)")
	default:
		return "", fmt.Errorf("unknown completion policy %q (want detached, joint or isolated)", name)
	}
}

func (p Policy) String() string { return string(p) }
