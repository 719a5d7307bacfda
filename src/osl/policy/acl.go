package policy

import (
	"fmt"

	"github.com/airssys-go/platform/src/common/pattern"
)

// ACL grants path/resource patterns to principals. It is the simplest of
// the composed policies: an explicit grant Allows, an explicit deny-list
// entry ExplicitDenies, anything else stays Deny (handled by Composed's
// default fold).
type ACL struct {
	grants map[string][]string // principal -> allowed resource patterns
	denies map[string][]string // principal -> explicitly denied resource patterns
}

func NewACL() *ACL {
	return &ACL{grants: map[string][]string{}, denies: map[string][]string{}}
}

func (a *ACL) Grant(principal string, resourcePatterns ...string) *ACL {
	a.grants[principal] = append(a.grants[principal], resourcePatterns...)
	return a
}

func (a *ACL) Deny(principal string, resourcePatterns ...string) *ACL {
	a.denies[principal] = append(a.denies[principal], resourcePatterns...)
	return a
}

func (a *ACL) Name() string { return "acl" }

func (a *ACL) Evaluate(req Request) (Decision, string, error) {
	if pattern.MatchAny(a.denies[req.Security.Principal], req.Resource) {
		return ExplicitDeny, fmt.Sprintf("%s explicitly denied for %s", req.Resource, req.Security.Principal), nil
	}
	if pattern.MatchAny(a.grants[req.Security.Principal], req.Resource) {
		return Allow, fmt.Sprintf("%s matched a grant for %s", req.Resource, req.Security.Principal), nil
	}
	return Deny, "path not matched", nil
}
