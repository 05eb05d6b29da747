package models

import "time"

type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members     []*User   `gorm:"many2many:project_members" json:"members,omitempty"`
	Status      string    `gorm:"not null;default:'active'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsMember reports whether id is the owner or appears in the loaded
// members list. Members must be preloaded by the caller.
func (p *Project) IsMember(id uint) bool {
	if p.OwnerID == id {
		return true
	}
	for _, m := range p.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}
