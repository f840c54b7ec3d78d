// Package identity defines the distinct id types the settlement core keys on.
// Wallets are owned by artisan profiles, not by the user accounts behind them;
// the distinct type keeps callers from passing a user id where a profile id is
// required.
package identity

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ArtisanID identifies an artisan (seller) profile.
type ArtisanID uuid.UUID

// UserID identifies a user account (buyer or the account behind an artisan).
type UserID uuid.UUID

func NewArtisanID() ArtisanID {
	return ArtisanID(uuid.New())
}

func ParseArtisanID(value string) (ArtisanID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return ArtisanID{}, fmt.Errorf("parsing artisan id: %w", err)
	}
	return ArtisanID(parsed), nil
}

func (a ArtisanID) UUID() uuid.UUID { return uuid.UUID(a) }

func (a ArtisanID) String() string { return uuid.UUID(a).String() }

func (a ArtisanID) IsZero() bool { return uuid.UUID(a) == uuid.Nil }

// Value implements driver.Valuer so the type can back a uuid column.
func (a ArtisanID) Value() (driver.Value, error) {
	return uuid.UUID(a).Value()
}

// Scan implements sql.Scanner.
func (a *ArtisanID) Scan(src any) error {
	var id uuid.UUID
	if err := id.Scan(src); err != nil {
		return err
	}
	*a = ArtisanID(id)
	return nil
}

func (a ArtisanID) MarshalText() ([]byte, error) {
	return uuid.UUID(a).MarshalText()
}

func (a *ArtisanID) UnmarshalText(data []byte) error {
	var id uuid.UUID
	if err := id.UnmarshalText(data); err != nil {
		return err
	}
	*a = ArtisanID(id)
	return nil
}

func NewUserID() UserID {
	return UserID(uuid.New())
}

func ParseUserID(value string) (UserID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return UserID{}, fmt.Errorf("parsing user id: %w", err)
	}
	return UserID(parsed), nil
}

func (u UserID) UUID() uuid.UUID { return uuid.UUID(u) }

func (u UserID) String() string { return uuid.UUID(u).String() }

func (u UserID) IsZero() bool { return uuid.UUID(u) == uuid.Nil }

func (u UserID) Value() (driver.Value, error) {
	return uuid.UUID(u).Value()
}

func (u *UserID) Scan(src any) error {
	var id uuid.UUID
	if err := id.Scan(src); err != nil {
		return err
	}
	*u = UserID(id)
	return nil
}

func (u UserID) MarshalText() ([]byte, error) {
	return uuid.UUID(u).MarshalText()
}

func (u *UserID) UnmarshalText(data []byte) error {
	var id uuid.UUID
	if err := id.UnmarshalText(data); err != nil {
		return err
	}
	*u = UserID(id)
	return nil
}
