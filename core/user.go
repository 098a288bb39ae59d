package core

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// UserConfiguration tracks, per reserve id, whether a user has the reserve
// enabled as collateral and whether they are borrowing from it. The two flag
// sets are fixed capacity bitmaps indexed by reserve id; toggles and lookups
// stay O(1).
type UserConfiguration struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Address    string    `gorm:"size:66;uniqueIndex:user_address_idx" json:"address"`
	Collateral []byte    `gorm:"size:16" json:"collateral"`
	Borrowing  []byte    `gorm:"size:16" json:"borrowing"`
	Version    int64     `gorm:"default:0" json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func getFlag(bits []byte, reserveID uint) bool {
	if reserveID >= MaxReserves || int(reserveID/8) >= len(bits) {
		return false
	}
	return bits[reserveID/8]&(1<<(reserveID%8)) != 0
}

func setFlag(bits []byte, reserveID uint, value bool) []byte {
	if reserveID >= MaxReserves {
		return bits
	}
	for int(reserveID/8) >= len(bits) {
		bits = append(bits, 0)
	}
	if value {
		bits[reserveID/8] |= 1 << (reserveID % 8)
	} else {
		bits[reserveID/8] &^= 1 << (reserveID % 8)
	}
	return bits
}

// UsingAsCollateral reports the collateral flag for a reserve.
func (u *UserConfiguration) UsingAsCollateral(reserveID uint) bool {
	return getFlag(u.Collateral, reserveID)
}

// SetUsingAsCollateral flips the collateral flag for a reserve.
func (u *UserConfiguration) SetUsingAsCollateral(reserveID uint, value bool) {
	u.Collateral = setFlag(u.Collateral, reserveID, value)
}

// IsBorrowing reports the borrowing flag for a reserve.
func (u *UserConfiguration) IsBorrowing(reserveID uint) bool {
	return getFlag(u.Borrowing, reserveID)
}

// SetBorrowing flips the borrowing flag for a reserve.
func (u *UserConfiguration) SetBorrowing(reserveID uint, value bool) {
	u.Borrowing = setFlag(u.Borrowing, reserveID, value)
}

// IsBorrowingAny reports whether any borrowing flag is set.
func (u *UserConfiguration) IsBorrowingAny() bool {
	for _, b := range u.Borrowing {
		if b != 0 {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the user has no flags at all.
func (u *UserConfiguration) IsEmpty() bool {
	if u.IsBorrowingAny() {
		return false
	}
	for _, b := range u.Collateral {
		if b != 0 {
			return false
		}
	}
	return true
}

// IUserConfigStore user configuration persistence
type IUserConfigStore interface {
	// FindOrCreate returns the configuration for the address, creating an
	// empty one on first sight.
	FindOrCreate(ctx context.Context, tx *gorm.DB, address string) (*UserConfiguration, error)
	Find(ctx context.Context, tx *gorm.DB, address string) (*UserConfiguration, error)
	Update(ctx context.Context, tx *gorm.DB, user *UserConfiguration) error
}
