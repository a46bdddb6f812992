package core

import "time"

// Member is an initial member of a DAO
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// DAO is a governance organisation created through the portal
type DAO struct {
	ID        string
	Name      string
	MemberIDs []string
	Members   []Member
	CreatedBy string
	CreatedAt time.Time
}

// HasMember reports whether id is listed among the DAO members
func (d *DAO) HasMember(id string) bool {
	for _, m := range d.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
