package models

import "time"

type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProjectID   uint       `gorm:"not null;index:idx_tasks_column" json:"project_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Status      string     `gorm:"not null;default:'todo';index:idx_tasks_column" json:"status"`
	Priority    string     `gorm:"not null;default:'medium'" json:"priority"`
	AssigneeID  *uint      `json:"assignee_id"`
	Assignee    *User      `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	CreatorID   uint       `gorm:"not null" json:"creator_id"`
	Creator     *User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	DueDate     *time.Time `json:"due_date"`
	Position    int        `gorm:"not null" json:"position"`
	Labels      []string   `gorm:"serializer:json" json:"labels"`
	Comments    []Comment  `gorm:"constraint:OnDelete:CASCADE" json:"comments"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Comment lives only inside its parent task; it is appended, never edited.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
