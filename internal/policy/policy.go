// Package policy holds the pure claim policy decisions: how an active claim
// is classified for a viewer, who may release a claim, and how the data-entry
// token is checked. No I/O happens here.
package policy

import (
	"crypto/subtle"
	"strings"
)

// Status is the client-visible classification of an area.
type Status string

const (
	StatusUnclaimed    Status = "unclaimed"
	StatusClaimedByYou Status = "claimed_by_you"
	StatusClaimed      Status = "claimed"
	StatusQuarantine   Status = "quarantine"
)

// MinTokenLength is the shortest data-entry token that is ever accepted.
const MinTokenLength = 6

// OrgDomains is the configured set of organization domains. An identity
// matches when it contains any configured domain as a substring, compared
// case-sensitively. The same predicate backs quarantine classification,
// admin-unclaim eligibility and the API's admin affordance.
type OrgDomains []string

// Match reports whether identity belongs to an organization domain.
func (d OrgDomains) Match(identity string) bool {
	if identity == "" {
		return false
	}
	for _, domain := range d {
		if domain == "" {
			continue
		}
		if strings.Contains(identity, domain) {
			return true
		}
	}
	return false
}

// Classify maps an active claimer (empty for no active claim) and the
// requesting caller to the area's status. Quarantine is decided from the
// claimer's identity alone, regardless of who is asking.
func Classify(claimer, caller string, domains OrgDomains) Status {
	switch {
	case claimer == "":
		return StatusUnclaimed
	case domains.Match(claimer):
		return StatusQuarantine
	case claimer == caller:
		return StatusClaimedByYou
	default:
		return StatusClaimed
	}
}

// MayUnclaim reports whether requester may release a claim held by claimer.
// Ordinary callers may only release their own claims. Admin callers may
// additionally release claims held by organization identities; they still
// cannot release an ordinary volunteer's claim.
func MayUnclaim(requester, claimer string, isAdmin bool, domains OrgDomains) bool {
	if requester != "" && requester == claimer {
		return true
	}
	return isAdmin && domains.Match(claimer)
}

// ValidDataEntryToken checks a presented token against the configured one.
// The configured token must be at least MinTokenLength characters; anything
// shorter (including an unset token) disables the path.
func ValidDataEntryToken(configured, presented string) bool {
	if len(configured) < MinTokenLength {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
