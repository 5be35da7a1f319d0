package models

import "time"

// ChatClient is one live connection owned by a user. A user may hold several
// (one per tab or device); the owning user goes Offline only when the last one
// is removed.
type ChatClient struct {
	BaseModel
	ConnectionID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"connectionId"`
	UserID       uint      `gorm:"index;not null" json:"userId"`
	UserAgent    string    `gorm:"type:varchar(255)" json:"userAgent,omitempty"`
	LastActivity time.Time `json:"lastActivity"`

	User *ChatUser `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for the ChatClient model.
func (ChatClient) TableName() string {
	return "chat_clients"
}
