package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	applicationorder "github.com/komono/backend/internal/application/order"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// CustomerAddress is one saved entry in a customer's address book
type CustomerAddress struct {
	shared.BaseEntity
	UserID    uuid.UUID           `gorm:"type:uuid;not null;index" json:"user_id"`
	Label     string              `gorm:"size:50" json:"label"`
	Address   valueobject.Address `gorm:"type:jsonb;not null" json:"address"`
	IsDefault bool                `gorm:"not null;default:false" json:"is_default"`
}

// TableName returns the table name
func (CustomerAddress) TableName() string {
	return "customer_addresses"
}

// DBAddressResolver resolves address book entries from the database.
// Scoping by user prevents checking out to someone else's address.
type DBAddressResolver struct {
	db *gorm.DB
}

// NewDBAddressResolver creates an address resolver backed by the database
func NewDBAddressResolver(db *gorm.DB) *DBAddressResolver {
	return &DBAddressResolver{db: db}
}

// Resolve returns the address book entry owned by the user
func (r *DBAddressResolver) Resolve(ctx context.Context, addressID, userID uuid.UUID) (valueobject.Address, error) {
	var entry CustomerAddress
	if err := dbFrom(ctx, r.db).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return valueobject.Address{}, shared.ErrNotFound
		}
		return valueobject.Address{}, err
	}
	return entry.Address, nil
}

var _ applicationorder.AddressResolver = (*DBAddressResolver)(nil)
