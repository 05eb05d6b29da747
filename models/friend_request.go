package models

import "time"

// FriendRequest keeps its terminal status after resolution; a user's
// pending list is the set of rows with status "pending" addressed to them.
type FriendRequest struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index" json:"sender_id"`
	Sender     *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID uint      `gorm:"not null;index" json:"receiver_id"`
	Receiver   *User     `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Status     string    `gorm:"not null;default:'pending'" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
