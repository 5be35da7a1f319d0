package models

import "time"

// UserView is the outbound shape of a user in notifications and queries.
type UserView struct {
	Name         string    `json:"name"`
	Hash         string    `json:"hash,omitempty"`
	Status       string    `json:"status"`
	Note         string    `json:"note,omitempty"`
	AfkNote      string    `json:"afkNote,omitempty"`
	IsAfk        bool      `json:"isAfk"`
	Flag         string    `json:"flag,omitempty"`
	IsAdmin      bool      `json:"isAdmin"`
	LastActivity time.Time `json:"lastActivity"`
}

// NewUserView builds the outbound view of a user.
func NewUserView(u *ChatUser) UserView {
	return UserView{
		Name:         u.Name,
		Hash:         u.Hash,
		Status:       u.Status.String(),
		Note:         u.Note,
		AfkNote:      u.AfkNote,
		IsAfk:        u.IsAfk,
		Flag:         u.Flag,
		IsAdmin:      u.IsAdmin,
		LastActivity: u.LastActivity,
	}
}

// RoomView is the outbound shape of a room. Topic and Welcome carry rendered
// text; Users and RecentMessages are filled only for full room snapshots.
type RoomView struct {
	Name           string        `json:"name"`
	Count          int           `json:"count"`
	Private        bool          `json:"private"`
	Closed         bool          `json:"closed"`
	Topic          string        `json:"topic,omitempty"`
	Welcome        string        `json:"welcome,omitempty"`
	Users          []UserView    `json:"users,omitempty"`
	Owners         []string      `json:"owners,omitempty"`
	RecentMessages []MessageView `json:"recentMessages,omitempty"`
}

// MessageView is the outbound shape of a message.
type MessageView struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	User    UserView `json:"user"`
	When    time.Time `json:"when"`
}

// NewMessageView builds the outbound view of a message.
func NewMessageView(m *ChatMessage) MessageView {
	v := MessageView{
		ID:      m.MessageID,
		Content: m.Content,
		When:    m.When,
	}
	if m.User != nil {
		v.User = NewUserView(m.User)
	}
	return v
}
