package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DashboardLayout is a user's named collection of widgets. A user has at
// most one layout flagged IsDefault; anonymous sessions get an in-memory
// layout that is never persisted server-side.
type DashboardLayout struct {
	ID          uuid.UUID      `json:"id"`
	UserID      string         `json:"user_id,omitempty"`
	Widgets     []WidgetConfig `json:"widgets"`
	IsDefault   bool           `json:"is_default"`
	LastUpdated time.Time      `json:"last_updated"`
}

// NewDashboardLayout creates an empty layout for a user.
func NewDashboardLayout(userID string) *DashboardLayout {
	return &DashboardLayout{
		ID:          uuid.New(),
		UserID:      userID,
		Widgets:     []WidgetConfig{},
		IsDefault:   true,
		LastUpdated: time.Now(),
	}
}

// Validate checks layout invariants: every widget valid, no duplicate ids.
func (l *DashboardLayout) Validate() error {
	seen := make(map[string]bool, len(l.Widgets))
	for i := range l.Widgets {
		w := &l.Widgets[i]
		if err := w.Validate(); err != nil {
			return err
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate widget id %s", w.ID)
		}
		seen[w.ID] = true
	}
	return nil
}

// Widget returns the widget with the given id, or nil.
func (l *DashboardLayout) Widget(id string) *WidgetConfig {
	for i := range l.Widgets {
		if l.Widgets[i].ID == id {
			return &l.Widgets[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the layout.
func (l *DashboardLayout) Clone() *DashboardLayout {
	out := *l
	out.Widgets = make([]WidgetConfig, len(l.Widgets))
	for i, w := range l.Widgets {
		out.Widgets[i] = w.Clone()
	}
	return &out
}

// NextFreeRow returns the first grid row below every existing widget.
// New widgets are appended there at x=0.
func (l *DashboardLayout) NextFreeRow() int {
	bottom := 0
	for _, w := range l.Widgets {
		if edge := w.Position.Y + w.Position.H; edge > bottom {
			bottom = edge
		}
	}
	return bottom
}
