package model

import "time"

type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusAccepted MatchStatus = "accepted"
)

// Match — отдельная запись «отклика» на предмет, независимая от Item.Claims.
type Match struct {
	ID        string      `json:"_id"`
	Item      ItemRef     `json:"itemId"`
	Requester UserRef     `json:"userId"`
	Type      ItemType    `json:"type"`
	Status    MatchStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
