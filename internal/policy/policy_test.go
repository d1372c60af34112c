package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var orgDomains = OrgDomains{"orgdomain.com", "event.org"}

func TestOrgDomainsMatch(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		want     bool
	}{
		{"org identity", "team@orgdomain.com", true},
		{"second domain", "hq@event.org", true},
		{"volunteer", "jane@example.com", false},
		{"empty identity", "", false},
		{"case sensitive", "team@OrgDomain.com", false},
		{"domain as substring anywhere", "orgdomain.com.volunteer@gmail.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orgDomains.Match(tt.identity))
		})
	}
}

func TestOrgDomainsMatchEmptySet(t *testing.T) {
	assert.False(t, OrgDomains(nil).Match("team@orgdomain.com"))
	assert.False(t, OrgDomains{""}.Match("team@orgdomain.com"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		claimer string
		caller  string
		want    Status
	}{
		{"no active claim", "", "jane@example.com", StatusUnclaimed},
		{"own claim", "jane@example.com", "jane@example.com", StatusClaimedByYou},
		{"someone else", "bob@example.com", "jane@example.com", StatusClaimed},
		{"org claimer", "team@orgdomain.com", "jane@example.com", StatusQuarantine},
		// Quarantine is decided from the claimer identity, even when the
		// org identity is the one asking.
		{"org claimer viewing own claim", "team@orgdomain.com", "team@orgdomain.com", StatusQuarantine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.claimer, tt.caller, orgDomains))
		})
	}
}

func TestMayUnclaim(t *testing.T) {
	tests := []struct {
		name      string
		requester string
		claimer   string
		isAdmin   bool
		want      bool
	}{
		{"own claim", "jane@example.com", "jane@example.com", false, true},
		{"someone else's claim", "jane@example.com", "bob@example.com", false, false},
		{"admin on org claim", "admin@orgdomain.com", "team@orgdomain.com", true, true},
		// The admin override is deliberately narrow: it manages quarantine
		// areas only, never ordinary volunteers' claims.
		{"admin on volunteer claim", "admin@orgdomain.com", "bob@example.com", true, false},
		{"empty requester", "", "", false, false},
		// An absent identity never matches a held claim.
		{"empty requester on held claim", "", "jane@example.com", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MayUnclaim(tt.requester, tt.claimer, tt.isAdmin, orgDomains))
		})
	}
}

func TestValidDataEntryToken(t *testing.T) {
	assert.True(t, ValidDataEntryToken("s3cret-token", "s3cret-token"))
	assert.False(t, ValidDataEntryToken("s3cret-token", "wrong-token"))
	assert.False(t, ValidDataEntryToken("s3cret-token", ""))

	// A short or unset configured token disables the path even when the
	// presented token matches exactly.
	assert.False(t, ValidDataEntryToken("abc", "abc"))
	assert.False(t, ValidDataEntryToken("", ""))
}
