package store

import (
	"errors"
	"fmt"
	"time"

	"econglobe.io/explorer/internal/catalog"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"createdAt"`
}

type ItemType string

const (
	ItemCountry ItemType = "country"
	ItemChart   ItemType = "chart"
)

// SavedItem is one entry of a user's dashboard. Items are created and deleted,
// never edited. Indicator is set exactly when Type is ItemChart.
type SavedItem struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Type      ItemType           `json:"type"`
	Country   catalog.Country    `json:"country"`
	Indicator *catalog.Indicator `json:"indicator,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

var ErrInvalidItem = errors.New("invalid saved item")

func (i SavedItem) Validate() error {
	if i.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidItem)
	}
	if i.Country.ID == "" {
		return fmt.Errorf("%w: missing country", ErrInvalidItem)
	}
	switch i.Type {
	case ItemCountry:
		if i.Indicator != nil {
			return fmt.Errorf("%w: country item carries an indicator", ErrInvalidItem)
		}
	case ItemChart:
		if i.Indicator == nil || i.Indicator.ID == "" {
			return fmt.Errorf("%w: chart item without indicator", ErrInvalidItem)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidItem, i.Type)
	}
	return nil
}

// Label is how the item is named in dashboard summaries:
// the country name, or "country - indicator" for charts.
func (i SavedItem) Label() string {
	if i.Type == ItemChart && i.Indicator != nil {
		return i.Country.Name + " - " + i.Indicator.Name
	}
	return i.Country.Name
}
