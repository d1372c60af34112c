// Package claims implements the claim lifecycle service: who may take, hold
// and release custody of a mesh block. All contention handling is delegated
// to the claim store's uniqueness constraint; the service translates store
// outcomes into the two normal results (already claimed, no active claim)
// and lets everything else propagate.
package claims

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/neighbourly/canvass-go/internal/datastore"
	"github.com/neighbourly/canvass-go/internal/errors"
	"github.com/neighbourly/canvass-go/internal/logging"
	"github.com/neighbourly/canvass-go/internal/observability/metrics"
	"github.com/neighbourly/canvass-go/internal/policy"
)

// Package-level logger specific to the claim service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "claims.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "claims", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize claims file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "claims")
		closeLogger = func() error { return nil }
	}
}

// Normal outcomes of claim lifecycle operations. Both are part of everyday
// contention and are never folded into success or treated as fatal.
var (
	// ErrAlreadyClaimed is returned by Claim when another active claim
	// holds the slug.
	ErrAlreadyClaimed = errors.NewStd("mesh block already claimed")

	// ErrNoActiveClaim is returned by the unclaim operations when no
	// matching active claim exists. It deliberately does not distinguish
	// "claimed by someone else" from "nothing to release".
	ErrNoActiveClaim = errors.NewStd("no active claim for mesh block")
)

// Service orchestrates claim store operations under the claim policy.
type Service struct {
	store   datastore.Interface
	domains policy.OrgDomains
	metrics *metrics.ClaimMetrics // nil-safe, may be absent
}

// NewService creates a claim service over the given store. metrics may be nil.
func NewService(store datastore.Interface, domains policy.OrgDomains, claimMetrics *metrics.ClaimMetrics) *Service {
	return &Service{
		store:   store,
		domains: domains,
		metrics: claimMetrics,
	}
}

// Domains returns the organization domain set the service was built with.
func (s *Service) Domains() policy.OrgDomains {
	return s.domains
}

// Claim inserts an active claim for slug held by claimer and returns the
// persisted row. Exactly one of two concurrent callers succeeds; the loser
// gets ErrAlreadyClaimed. There is no pre-flight existence check: the store's
// unique constraint is the authority and the service reacts to its verdict.
func (s *Service) Claim(ctx context.Context, slug, claimer string) (*datastore.Claim, error) {
	claim, err := s.store.InsertClaim(ctx, slug, claimer)
	if err != nil {
		if datastore.IsConflict(err) {
			logger.Info("Claim lost race", "slug", slug, "claimer", claimer)
			s.metrics.RecordClaimOperation("claim", "conflict")
			return nil, ErrAlreadyClaimed
		}
		s.metrics.RecordClaimOperation("claim", "error")
		return nil, err
	}

	logger.Info("Claim created", "slug", slug, "claimer", claimer)
	s.metrics.RecordClaimOperation("claim", "success")
	return claim, nil
}

// Unclaim releases the active claim on slug iff it is held by claimer.
// A claim held by someone else, a slug with no active claim, and an absent
// caller identity all come back as ErrNoActiveClaim.
func (s *Service) Unclaim(ctx context.Context, slug, claimer string) error {
	return s.release(ctx, slug, claimer, false, "unclaim")
}

// AdminUnclaim releases the active claim on slug only when its claimer is an
// organization identity. Claims held by ordinary volunteers are left alone
// and reported as ErrNoActiveClaim, the same as an unclaimed slug: admins
// manage quarantine areas, they do not get a blanket override.
func (s *Service) AdminUnclaim(ctx context.Context, slug, requester string) error {
	return s.release(ctx, slug, requester, true, "admin_unclaim")
}

// release resolves the active claim, consults the unclaim policy, then
// releases conditionally on the same claimer still holding the slug, so a
// release raced by someone else's new claim cannot take out the wrong claim.
func (s *Service) release(ctx context.Context, slug, requester string, isAdmin bool, operation string) error {
	claim, err := s.store.ActiveClaim(ctx, slug)
	if err != nil {
		if datastore.IsNotFound(err) {
			s.metrics.RecordClaimOperation(operation, "not_found")
			return ErrNoActiveClaim
		}
		s.metrics.RecordClaimOperation(operation, "error")
		return err
	}

	if !policy.MayUnclaim(requester, claim.Claimer, isAdmin, s.domains) {
		logger.Info("Release refused by policy",
			"slug", slug, "requester", requester, "claimer", claim.Claimer, "admin", isAdmin)
		s.metrics.RecordClaimOperation(operation, "not_found")
		return ErrNoActiveClaim
	}

	if err := s.store.ReleaseClaim(ctx, slug, claim.Claimer); err != nil {
		if datastore.IsNotFound(err) {
			s.metrics.RecordClaimOperation(operation, "not_found")
			return ErrNoActiveClaim
		}
		s.metrics.RecordClaimOperation(operation, "error")
		return err
	}

	logger.Info("Claim released", "slug", slug, "claimer", claim.Claimer, "requester", requester, "admin", isAdmin)
	s.metrics.RecordClaimOperation(operation, "success")
	return nil
}

// DataEntryUnclaim releases the active claim on slug regardless of claimer.
// The caller is responsible for checking the data-entry token first; this
// method performs no authorization of its own.
func (s *Service) DataEntryUnclaim(ctx context.Context, slug string) error {
	err := s.store.ReleaseClaim(ctx, slug, "")
	if err != nil {
		if datastore.IsNotFound(err) {
			s.metrics.RecordClaimOperation("data_entry_unclaim", "not_found")
			return ErrNoActiveClaim
		}
		s.metrics.RecordClaimOperation("data_entry_unclaim", "error")
		return err
	}

	logger.Info("Claim released via data entry", "slug", slug)
	s.metrics.RecordClaimOperation("data_entry_unclaim", "success")
	return nil
}

// ActiveClaimsFor resolves the active claimer for each slug in one store
// round trip. Slugs without an active claim are absent from the result.
func (s *Service) ActiveClaimsFor(ctx context.Context, slugs []string) (map[string]string, error) {
	return s.store.ActiveClaims(ctx, slugs)
}
