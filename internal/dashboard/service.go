// Package dashboard persists the items a signed-in user pins and keeps live
// views of them current.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/store"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrItemNotFound     = errors.New("dashboard item not found")
)

// ItemStore is the persistence the service needs.
type ItemStore interface {
	CreateSavedItem(ctx context.Context, item *store.SavedItem) error
	ListSavedItemsByUser(ctx context.Context, userID string) ([]store.SavedItem, error)
	GetSavedItem(ctx context.Context, id string) (*store.SavedItem, error)
	DeleteSavedItem(ctx context.Context, userID, id string) (bool, error)
}

// ChartLoader fetches one indicator series for a country.
type ChartLoader interface {
	Chart(ctx context.Context, countryID string, indicator catalog.Indicator) (catalog.ChartSeries, error)
}

type Service struct {
	items    ItemStore
	notifier Notifier
	charts   ChartLoader
	logger   *zap.Logger
}

func NewService(items ItemStore, notifier Notifier, charts ChartLoader, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = NewLocalHub()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{items: items, notifier: notifier, charts: charts, logger: logger}
}

// AddCountry pins a country and returns the new item id.
func (s *Service) AddCountry(ctx context.Context, user *store.User, country catalog.Country) (string, error) {
	return s.add(ctx, user, store.SavedItem{Type: store.ItemCountry, Country: country})
}

// AddChart pins a country/indicator chart and returns the new item id.
func (s *Service) AddChart(ctx context.Context, user *store.User, country catalog.Country, indicator catalog.Indicator) (string, error) {
	return s.add(ctx, user, store.SavedItem{Type: store.ItemChart, Country: country, Indicator: &indicator})
}

func (s *Service) add(ctx context.Context, user *store.User, item store.SavedItem) (string, error) {
	if user == nil {
		return "", ErrNotAuthenticated
	}
	item.UserID = user.ID
	if err := s.items.CreateSavedItem(ctx, &item); err != nil {
		return "", fmt.Errorf("save %s item: %w", item.Type, err)
	}
	s.changed(ctx, user.ID)
	s.logger.Debug("dashboard item saved",
		zap.String("user_id", user.ID),
		zap.String("item_id", item.ID),
		zap.String("type", string(item.Type)))
	return item.ID, nil
}

// DeleteItem removes one of the user's items. Deleting a missing or foreign
// id is not an error and changes nothing.
func (s *Service) DeleteItem(ctx context.Context, user *store.User, itemID string) error {
	if user == nil {
		return ErrNotAuthenticated
	}
	removed, err := s.items.DeleteSavedItem(ctx, user.ID, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if removed {
		s.changed(ctx, user.ID)
	}
	return nil
}

// Items returns the user's current items.
func (s *Service) Items(ctx context.Context, user *store.User) ([]store.SavedItem, error) {
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	items, err := s.items.ListSavedItemsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Item returns one of the user's items. Items owned by someone else are
// reported as missing.
func (s *Service) Item(ctx context.Context, user *store.User, itemID string) (store.SavedItem, error) {
	if user == nil {
		return store.SavedItem{}, ErrNotAuthenticated
	}
	item, err := s.items.GetSavedItem(ctx, itemID)
	if err != nil {
		return store.SavedItem{}, fmt.Errorf("get item: %w", err)
	}
	if item == nil || item.UserID != user.ID {
		return store.SavedItem{}, ErrItemNotFound
	}
	return *item, nil
}

// changed signals watchers. The write already succeeded, so a failed signal
// is only logged.
func (s *Service) changed(ctx context.Context, userID string) {
	if err := s.notifier.Notify(ctx, userID); err != nil {
		s.logger.Warn("dashboard change not broadcast", zap.String("user_id", userID), zap.Error(err))
	}
}
