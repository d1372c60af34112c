// interfaces.go: this code defines the interface for the claim store operations
package datastore

import (
	"context"
	"time"

	"github.com/neighbourly/canvass-go/internal/conf"
	"github.com/neighbourly/canvass-go/internal/errors"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations of the claim store. All mutations are single atomic statements;
// correctness under concurrent callers rests on the unique index over
// active_slug, not on in-process locking.
type Interface interface {
	Open() error
	Close() error

	// InsertClaim creates an active claim for slug. When another active
	// claim already holds the slug, the returned error carries
	// errors.CategoryConflict (check with IsConflict).
	InsertClaim(ctx context.Context, slug, claimer string) (*Claim, error)

	// ReleaseClaim soft-deletes the active claim for slug in one
	// conditional UPDATE. A non-empty claimer restricts the release to a
	// claim held by exactly that identity. When nothing matched, the
	// returned error carries errors.CategoryNotFound (check with
	// IsNotFound).
	ReleaseClaim(ctx context.Context, slug, claimer string) error

	// ActiveClaim returns the active claim for slug, or a not-found error.
	ActiveClaim(ctx context.Context, slug string) (*Claim, error)

	// ActiveClaims resolves active claims for a set of slugs in a single
	// query, returning slug -> claimer. Slugs without an active claim are
	// absent from the map.
	ActiveClaims(ctx context.Context, slugs []string) (map[string]string, error)

	// ClaimHistory returns every claim row ever recorded for slug, newest
	// first, released rows included.
	ClaimHistory(ctx context.Context, slug string) ([]Claim, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a claim store instance for the backend enabled in settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		// conf.ValidateSettings rejects this before we get here
		return nil
	}
}

// InsertClaim creates a new active claim row. The unique index over
// active_slug is the authority on contention: two concurrent inserts for the
// same slug race at the database, and the loser comes back as a conflict.
func (ds *DataStore) InsertClaim(ctx context.Context, slug, claimer string) (*Claim, error) {
	if slug == "" {
		return nil, validationError("mesh block slug must not be empty", "slug", slug)
	}
	if claimer == "" {
		return nil, validationError("claimer must not be empty", "claimer", claimer)
	}

	claim := &Claim{
		MeshBlockSlug: slug,
		Claimer:       claimer,
		ClaimDate:     time.Now(),
		ActiveSlug:    &slug,
	}

	if err := ds.DB.WithContext(ctx).Create(claim).Error; err != nil {
		if isConstraintViolation(err) {
			return nil, conflictError(err, "insert_claim", slug)
		}
		return nil, dbError(err, "insert_claim", "slug", slug)
	}
	return claim, nil
}

// ReleaseClaim soft-deletes the active claim for slug as a single conditional
// UPDATE, stamping deleted_at and clearing active_slug together so the unique
// index frees the slug atomically.
func (ds *DataStore) ReleaseClaim(ctx context.Context, slug, claimer string) error {
	if slug == "" {
		return validationError("mesh block slug must not be empty", "slug", slug)
	}

	query := ds.DB.WithContext(ctx).Model(&Claim{}).
		Where("mesh_block_slug = ? AND deleted_at IS NULL", slug)
	if claimer != "" {
		query = query.Where("claimer = ?", claimer)
	}

	now := time.Now()
	result := query.Updates(map[string]any{
		"deleted_at":  &now,
		"active_slug": nil,
	})
	if result.Error != nil {
		return dbError(result.Error, "release_claim", "slug", slug)
	}
	if result.RowsAffected == 0 {
		return notFoundError("active claim", slug)
	}
	return nil
}

// ActiveClaim retrieves the active claim for a slug.
func (ds *DataStore) ActiveClaim(ctx context.Context, slug string) (*Claim, error) {
	var claim Claim
	err := ds.DB.WithContext(ctx).
		Where("mesh_block_slug = ? AND deleted_at IS NULL", slug).
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("active claim", slug)
		}
		return nil, dbError(err, "active_claim", "slug", slug)
	}
	return &claim, nil
}

// ActiveClaims performs the bulk lookup backing the status overlay: one query
// for however many features are on the map.
func (ds *DataStore) ActiveClaims(ctx context.Context, slugs []string) (map[string]string, error) {
	claims := make(map[string]string, len(slugs))
	if len(slugs) == 0 {
		return claims, nil
	}

	var rows []Claim
	err := ds.DB.WithContext(ctx).
		Select("mesh_block_slug", "claimer").
		Where("mesh_block_slug IN ? AND deleted_at IS NULL", slugs).
		Find(&rows).Error
	if err != nil {
		return nil, dbError(err, "active_claims", "slug_count", len(slugs))
	}

	for i := range rows {
		claims[rows[i].MeshBlockSlug] = rows[i].Claimer
	}
	return claims, nil
}

// ClaimHistory returns all claim rows for a slug, newest first.
func (ds *DataStore) ClaimHistory(ctx context.Context, slug string) ([]Claim, error) {
	var rows []Claim
	err := ds.DB.WithContext(ctx).
		Where("mesh_block_slug = ?", slug).
		Order("claim_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, dbError(err, "claim_history", "slug", slug)
	}
	return rows, nil
}

// performAutoMigration runs gorm's auto-migration for the claim schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Claim{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migration").
			Context("db_type", dbType).
			Build()
	}
	if debug {
		getLogger().Debug("Database migration completed", "db_type", dbType, "connection", connectionInfo)
	}
	return nil
}
