package model

import "time"

// Chat — переписка двух участников по одному предмету.
type Chat struct {
	ID           string         `json:"_id"`
	Item         ItemRef        `json:"itemId"`
	Participants []UserRef      `json:"participants"`
	LastMessage  string         `json:"lastMessage"`
	UnreadCounts map[string]int `json:"unreadCounts"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// HasParticipant проверяет, участвует ли пользователь в чате.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Counterpart возвращает второго участника. Пустая строка — если userID не участник
// или в чате нет второго участника.
func (c *Chat) Counterpart(userID string) string {
	if !c.HasParticipant(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p.ID != userID {
			return p.ID
		}
	}
	return ""
}

// ParticipantKey — упорядоченная пара id; чат уникален по (item, ключ).
func ParticipantKey(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c *Chat) Clone() *Chat {
	cp := *c
	cp.Participants = append([]UserRef(nil), c.Participants...)
	cp.UnreadCounts = make(map[string]int, len(c.UnreadCounts))
	for k, v := range c.UnreadCounts {
		cp.UnreadCounts[k] = v
	}
	return &cp
}
