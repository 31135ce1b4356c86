package state

import "econglobe.io/explorer/internal/catalog"

// Selection is what the globe user is inspecting and whether the detail panel
// is visible.
type Selection struct {
	PanelOpen       bool             `json:"panelOpen"`
	SelectedCountry *catalog.Country `json:"selectedCountry"`
}

// SelectionState is one browser session's selection. The zero selection
// (panel closed, nothing selected) is the initial value.
type SelectionState struct {
	store *Store[Selection]
}

func NewSelectionState() *SelectionState {
	return &SelectionState{store: NewStore(Selection{})}
}

// SelectCountry always overwrites the selection and opens the panel.
func (s *SelectionState) SelectCountry(c catalog.Country) Selection {
	return s.store.Update(func(Selection) Selection {
		return Selection{PanelOpen: true, SelectedCountry: &c}
	})
}

// ClosePanel hides the panel and clears the selection with it.
func (s *SelectionState) ClosePanel() Selection {
	return s.store.Update(func(Selection) Selection {
		return Selection{}
	})
}

func (s *SelectionState) OpenPanel() Selection {
	return s.store.Update(func(cur Selection) Selection {
		cur.PanelOpen = true
		return cur
	})
}

// GoBack returns the panel to the country list.
func (s *SelectionState) GoBack() Selection {
	return s.store.Update(func(cur Selection) Selection {
		cur.SelectedCountry = nil
		return cur
	})
}

func (s *SelectionState) Current() Selection {
	return s.store.Get()
}

func (s *SelectionState) Subscribe() *Subscription[Selection] {
	return s.store.Subscribe()
}

func (s *SelectionState) Subscribers() int {
	return s.store.Subscribers()
}
