package types

import "time"

// DefaultBoardName is the board created by the initial migration.
const DefaultBoardName = "Inbox"

// Board groups tasks. Order is the display position; it is not required to
// be unique.
type Board struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Order     int       `json:"order" yaml:"order"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}
