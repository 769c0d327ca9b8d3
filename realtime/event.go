package realtime

import (
	"github.com/hanyong5/kiview/models"
)

// Change-feed event types, mirroring row-level database changes.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// ChangeEvent is a single row change on the orders table. Seq is assigned by
// the hub and increases monotonically, so consumers can drop events that
// arrive out of order.
type ChangeEvent struct {
	Seq   uint64       `json:"seq"`
	Table string       `json:"table"`
	Type  string       `json:"type"`
	Order models.Order `json:"order"`
}
