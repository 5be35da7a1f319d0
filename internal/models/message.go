package models

import "time"

// ChatMessage is a message posted to a room.
//
// MessageID is the wire identity and is assigned twice: first the client's
// ephemeral echo id so the sender can reconcile its optimistic local copy,
// then a durable id once the message is committed. Content grows append-only
// as link enrichment fragments arrive; the original text is never replaced.
type ChatMessage struct {
	BaseModel
	MessageID string    `gorm:"type:varchar(64);index;not null" json:"messageId"`
	RoomID    uint      `gorm:"index;not null" json:"roomId"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Content   string    `gorm:"type:text" json:"content"`
	When      time.Time `gorm:"index;not null" json:"when"`

	User *ChatUser `gorm:"foreignKey:UserID" json:"-"`
	Room *ChatRoom `gorm:"foreignKey:RoomID" json:"-"`
}

// TableName specifies the table name for the ChatMessage model.
func (ChatMessage) TableName() string {
	return "chat_messages"
}
