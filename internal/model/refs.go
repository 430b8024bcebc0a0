package model

import "encoding/json"

// UserRef ссылается на пользователя. Без заполненных полей сериализуется как строка id,
// с заполненными — как объект {_id, name, email} (формат, который ожидает фронтенд).
type UserRef struct {
	ID    string
	Name  string
	Email string
}

func (r UserRef) Populated() bool { return r.Name != "" || r.Email != "" }

func (r UserRef) MarshalJSON() ([]byte, error) {
	if !r.Populated() {
		return json.Marshal(r.ID)
	}
	return json.Marshal(struct {
		ID    string `json:"_id"`
		Name  string `json:"name,omitempty"`
		Email string `json:"email,omitempty"`
	}{r.ID, r.Name, r.Email})
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = UserRef{ID: id}
		return nil
	}
	var obj struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = UserRef{ID: obj.ID, Name: obj.Name, Email: obj.Email}
	return nil
}

// ItemRef ссылается на предмет; заполненный вариант несёт краткую сводку.
type ItemRef struct {
	ID       string
	Title    string
	Type     ItemType
	Status   ItemStatus
	Location string
}

func (r ItemRef) Populated() bool { return r.Title != "" }

func (r ItemRef) MarshalJSON() ([]byte, error) {
	if !r.Populated() {
		return json.Marshal(r.ID)
	}
	return json.Marshal(struct {
		ID       string     `json:"_id"`
		Title    string     `json:"title"`
		Type     ItemType   `json:"type,omitempty"`
		Status   ItemStatus `json:"status,omitempty"`
		Location string     `json:"location,omitempty"`
	}{r.ID, r.Title, r.Type, r.Status, r.Location})
}

func (r *ItemRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = ItemRef{ID: id}
		return nil
	}
	var obj struct {
		ID       string     `json:"_id"`
		Title    string     `json:"title"`
		Type     ItemType   `json:"type"`
		Status   ItemStatus `json:"status"`
		Location string     `json:"location"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = ItemRef{ID: obj.ID, Title: obj.Title, Type: obj.Type, Status: obj.Status, Location: obj.Location}
	return nil
}
