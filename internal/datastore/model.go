// model.go this code defines the data model for the claim store
package datastore

import "time"

// Claim represents one mesh block held by one claimer. Rows are never
// physically deleted: release stamps DeletedAt and clears ActiveSlug, and the
// row stays behind as history.
type Claim struct {
	ID            uint      `gorm:"primaryKey"`
	MeshBlockSlug string    `gorm:"index:idx_claims_slug;not null"`
	Claimer       string    `gorm:"index:idx_claims_claimer;not null"`
	ClaimDate     time.Time `gorm:"not null"`

	// DeletedAt marks the claim as released. Active-claim queries must
	// always filter on deleted_at IS NULL explicitly; this is a plain
	// column, not gorm's soft-delete hook.
	DeletedAt *time.Time `gorm:"index:idx_claims_deleted_at"`

	// ActiveSlug mirrors MeshBlockSlug while the claim is active and is
	// cleared in the same UPDATE that stamps DeletedAt. MySQL unique
	// indexes treat NULLs as distinct, so this nullable mirror column is
	// what enforces "at most one active claim per slug" on every backend.
	ActiveSlug *string `gorm:"uniqueIndex:idx_claims_active_slug"`
}

// Active reports whether the claim has not been released.
func (c *Claim) Active() bool {
	return c.DeletedAt == nil
}
