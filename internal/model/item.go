package model

import "time"

type ItemType string

const (
	ItemTypeLost  ItemType = "lost"
	ItemTypeFound ItemType = "found"
)

func (t ItemType) Valid() bool { return t == ItemTypeLost || t == ItemTypeFound }

type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusMatched  ItemStatus = "matched"
	ItemStatusResolved ItemStatus = "resolved"
)

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

type Item struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	ContactInfo string     `json:"contactInfo"`
	Image       string     `json:"image,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Type        ItemType   `json:"type"`
	Status      ItemStatus `json:"status"`
	Owner       UserRef    `json:"userId"`
	Claims      []Claim    `json:"claims"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Claim — заявка пользователя на предмет, хранится внутри Item.
type Claim struct {
	ID        string      `json:"_id"`
	Claimant  UserRef     `json:"user"`
	ClaimType ItemType    `json:"claimType"`
	Message   string      `json:"message"`
	Status    ClaimStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FindClaim возвращает индекс заявки по id или -1.
func (it *Item) FindClaim(claimID string) int {
	for i := range it.Claims {
		if it.Claims[i].ID == claimID {
			return i
		}
	}
	return -1
}

// HasClaimBy сообщает, подавал ли пользователь заявку на предмет (в любом статусе).
func (it *Item) HasClaimBy(userID string) bool {
	for i := range it.Claims {
		if it.Claims[i].Claimant.ID == userID {
			return true
		}
	}
	return false
}

func (it *Item) Ref() ItemRef {
	return ItemRef{ID: it.ID, Title: it.Title, Type: it.Type, Status: it.Status, Location: it.Location}
}

// Clone — глубокая копия (claims не разделяют backing array).
func (it *Item) Clone() *Item {
	c := *it
	c.Claims = make([]Claim, len(it.Claims))
	copy(c.Claims, it.Claims)
	return &c
}

// ItemFilter — параметры выборки предметов.
type ItemFilter struct {
	OwnerID string
	Type    ItemType
}

// ClaimView — заявка в плоском админском списке, с предметом, владельцем и заявителем.
type ClaimView struct {
	ID        string      `json:"_id"`
	Item      ItemRef     `json:"item"`
	Owner     UserRef     `json:"owner"`
	Claimer   UserRef     `json:"claimer"`
	ClaimType ItemType    `json:"claimType"`
	Message   string      `json:"message"`
	Status    ClaimStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}
