package model

import "time"

// Store is a bookable venue from the catalog.  DepositAmount is the
// total deposit the venue requires to honor a group booking; it is
// split among participants when settlement starts.
//
// Fields:
//  ID            – primary key identifier.
//  OwnerID       – account managing this venue.
//  Name          – display name.
//  Category      – free-form category label (e.g. "korean bbq").
//  DepositAmount – required total deposit in KRW; 0 means the venue
//                  takes no deposit and settlement cannot start.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type Store struct {
	ID            uint64    // stores.id
	OwnerID       uint64    // stores.owner_id
	Name          string    // stores.name
	Category      string    // stores.category
	DepositAmount int64     // stores.deposit_amount
	CreatedAt     time.Time // stores.created_at
	UpdatedAt     time.Time // stores.updated_at
}
