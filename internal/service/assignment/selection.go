package assignment

// Selection is the ephemeral set of order IDs picked for a bulk assignment.
// It is a plain value owned by the caller (one per UI session), not shared
// ambient state, so clearing is deterministic and testable.
type Selection struct {
	ids    map[string]struct{}
	active bool
}

// NewSelection returns an empty, inactive selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle adds the order to the selection, or removes it when already present.
// Selecting the first order activates selection mode.
func (s *Selection) Toggle(orderID string) {
	if orderID == "" {
		return
	}
	if _, ok := s.ids[orderID]; ok {
		delete(s.ids, orderID)
		if len(s.ids) == 0 {
			s.active = false
		}
		return
	}
	s.ids[orderID] = struct{}{}
	s.active = true
}

// Has reports whether the order is currently selected.
func (s *Selection) Has(orderID string) bool {
	_, ok := s.ids[orderID]
	return ok
}

// Len returns the number of selected orders.
func (s *Selection) Len() int { return len(s.ids) }

// Active reports whether selection mode is on.
func (s *Selection) Active() bool { return s.active }

// IDs returns the selected order IDs.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// Clear empties the selection and leaves selection mode.
func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
	s.active = false
}
