package models

import "time"

// UserStatus is a user's aggregate presence, derived from their live connections.
type UserStatus int

const (
	StatusActive UserStatus = iota
	StatusInactive
	StatusOffline
)

// String returns the presence name used in view models and client events.
func (s UserStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusInactive:
		return "Inactive"
	default:
		return "Offline"
	}
}

// ChatUser is a registered chat user.
//
// Status must be Offline exactly when ConnectedClients is empty; every
// activity-bearing event and the inactivity sweep recompute it.
type ChatUser struct {
	BaseModel
	Name           string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	HashedPassword string     `gorm:"type:varchar(255)" json:"-"`
	Email          string     `gorm:"type:varchar(100)" json:"email,omitempty"`
	Identity       string     `gorm:"type:varchar(255)" json:"-"` // external auth identity link
	Hash           string     `gorm:"type:varchar(100)" json:"hash,omitempty"` // avatar hash
	Status         UserStatus `gorm:"default:2" json:"status"`
	LastActivity   time.Time  `json:"lastActivity"`
	LastNudged     *time.Time `json:"lastNudged,omitempty"`
	Note           string     `gorm:"type:varchar(200)" json:"note,omitempty"`
	AfkNote        string     `gorm:"type:varchar(200)" json:"afkNote,omitempty"`
	IsAfk          bool       `json:"isAfk"`
	Flag           string     `gorm:"type:varchar(2)" json:"flag,omitempty"` // ISO 3166-2 country code
	IsAdmin        bool       `json:"isAdmin"`

	ConnectedClients []*ChatClient `gorm:"foreignKey:UserID" json:"-"`
	Rooms            []*ChatRoom   `gorm:"many2many:room_users" json:"-"`
	OwnedRooms       []*ChatRoom   `gorm:"many2many:room_owners" json:"-"`
	AllowedRooms     []*ChatRoom   `gorm:"many2many:room_allowed_users" json:"-"`
}

// TableName specifies the table name for the ChatUser model.
func (ChatUser) TableName() string {
	return "chat_users"
}

// InRoom reports whether the user is a member of room.
func (u *ChatUser) InRoom(room *ChatRoom) bool {
	for _, r := range u.Rooms {
		if r.ID == room.ID {
			return true
		}
	}
	return false
}

// Owns reports whether the user is an owner of room.
func (u *ChatUser) Owns(room *ChatRoom) bool {
	for _, r := range u.OwnedRooms {
		if r.ID == room.ID {
			return true
		}
	}
	return false
}

// IsAllowed reports whether the user holds an ACL grant for room.
func (u *ChatUser) IsAllowed(room *ChatRoom) bool {
	for _, r := range u.AllowedRooms {
		if r.ID == room.ID {
			return true
		}
	}
	return false
}
