package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when the database file does not exist.
var ErrNotFound = errors.New("not found")

const (
	TableContainerStates = "container_states"
	TableInteractionData = "interaction_data"
)

// Column describes one column as reported by the catalog, in declaration order.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type ContainerState struct {
	UserID   string
	DataSize int64 // byte length of state_data
	Version  int64
	// CreatedAt and UpdatedAt are left empty when the columns are absent.
	CreatedAt    string
	UpdatedAt    string
	HasCreatedAt bool
	HasUpdatedAt bool
}

type Interaction struct {
	Type      string
	UserID    string
	Timestamp int64 // epoch milliseconds
	Details   string
}

// Time converts the millisecond timestamp to whole Unix seconds in UTC.
func (i Interaction) Time() time.Time {
	return time.Unix(i.Timestamp/1000, 0).UTC()
}

type TypeCount struct {
	Type  string
	Count int64
}

type UserTypeCount struct {
	UserID string
	Type   string
	Count  int64
}
