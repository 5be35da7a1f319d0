package models

// ChatRoom is a chat room.
//
// Names are unique case-insensitively. Closed rooms accept no new messages but
// keep their membership. Private rooms accept joins only with a valid invite
// code or a pre-existing ACL grant.
type ChatRoom struct {
	BaseModel
	Name       string `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Private    bool   `json:"private"`
	Closed     bool   `json:"closed"`
	InviteCode string `gorm:"type:varchar(6)" json:"-"`
	Topic      string `gorm:"type:varchar(200)" json:"topic,omitempty"`
	Welcome    string `gorm:"type:varchar(200)" json:"welcome,omitempty"`
	CreatorID  uint   `json:"creatorId"`

	Creator      *ChatUser   `gorm:"foreignKey:CreatorID" json:"-"`
	Users        []*ChatUser `gorm:"many2many:room_users" json:"-"`
	Owners       []*ChatUser `gorm:"many2many:room_owners" json:"-"`
	AllowedUsers []*ChatUser `gorm:"many2many:room_allowed_users" json:"-"`
}

// TableName specifies the table name for the ChatRoom model.
func (ChatRoom) TableName() string {
	return "chat_rooms"
}

// HasUser reports whether user is a member of the room.
func (r *ChatRoom) HasUser(user *ChatUser) bool {
	for _, u := range r.Users {
		if u.ID == user.ID {
			return true
		}
	}
	return false
}

// HasOwner reports whether user owns the room.
func (r *ChatRoom) HasOwner(user *ChatUser) bool {
	for _, u := range r.Owners {
		if u.ID == user.ID {
			return true
		}
	}
	return false
}

// IsUserAllowed reports whether user may enter the room: members of the ACL,
// owners and admins may; everyone may when the room is public.
func (r *ChatRoom) IsUserAllowed(user *ChatUser) bool {
	if !r.Private {
		return true
	}
	if user.IsAdmin || r.HasOwner(user) {
		return true
	}
	for _, u := range r.AllowedUsers {
		if u.ID == user.ID {
			return true
		}
	}
	return false
}
