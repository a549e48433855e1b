package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity provides common fields for all entities
type BaseEntity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// GetUpdatedAt returns the last update timestamp
func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Audit records which actor created and last modified an entity.
// Composed into aggregates that need staff/customer attribution.
type Audit struct {
	CreatedBy *uuid.UUID `gorm:"type:uuid;index" json:"created_by"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by"`
}

// SetCreatedBy sets the creating actor
func (a *Audit) SetCreatedBy(actorID uuid.UUID) {
	a.CreatedBy = &actorID
}

// SetUpdatedBy sets the last modifying actor
func (a *Audit) SetUpdatedBy(actorID uuid.UUID) {
	a.UpdatedBy = &actorID
}

// SoftDelete marks an entity as logically deleted without removing the row
type SoftDelete struct {
	DeletedAt *time.Time `gorm:"index" json:"deleted_at"`
	DeletedBy *uuid.UUID `gorm:"type:uuid" json:"deleted_by"`
}

// IsDeleted returns true if the entity has been soft-deleted
func (s *SoftDelete) IsDeleted() bool {
	return s.DeletedAt != nil
}

// MarkDeleted records the deletion time and the acting user
func (s *SoftDelete) MarkDeleted(actorID uuid.UUID) {
	now := time.Now()
	s.DeletedAt = &now
	s.DeletedBy = &actorID
}

// Activatable adds an on/off switch to an entity
type Activatable struct {
	IsActive bool `gorm:"not null;default:true" json:"is_active"`
}

// Activate turns the entity on
func (a *Activatable) Activate() {
	a.IsActive = true
}

// Deactivate turns the entity off
func (a *Activatable) Deactivate() {
	a.IsActive = false
}
