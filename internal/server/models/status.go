package models

import (
	"encoding/json"
	"time"
)

// UserStatus is one timestamped snapshot of client-reported session state.
// Params is a JSON object stored verbatim.
type UserStatus struct {
	ID       int64
	UserID   string
	ActualAt time.Time
	Params   json.RawMessage
}
