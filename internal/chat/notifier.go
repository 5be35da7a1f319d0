package chat

import (
	"banter/internal/models"
)

// Notifier turns domain effects into client events. Room-scoped effects go to
// the room's live subscribers, user-scoped effects to every connection the
// user holds. Room events are also mirrored to the journal when one is
// configured.
type Notifier struct {
	groups  *Groups
	sender  Sender
	journal Journal
}

// NewNotifier creates a Notifier. journal may be nil.
func NewNotifier(groups *Groups, sender Sender, journal Journal) *Notifier {
	return &Notifier{groups: groups, sender: sender, journal: journal}
}

// Broadcaster is the subset of Sender able to reach every connection.
type Broadcaster interface {
	Broadcast(event Event) error
}

func (n *Notifier) toConnection(connectionID string, event Event) {
	_ = n.sender.SendEvent(connectionID, event)
}

func (n *Notifier) toUser(user *models.ChatUser, event Event) {
	for _, client := range user.ConnectedClients {
		_ = n.sender.SendEvent(client.ConnectionID, event)
	}
}

func (n *Notifier) toRoom(roomName string, event Event) {
	for _, connectionID := range n.groups.Connections(roomName) {
		_ = n.sender.SendEvent(connectionID, event)
	}
	if n.journal != nil {
		n.journal.Record(event.Type, roomName, event.Data)
	}
}

func (n *Notifier) toAll(event Event) {
	if b, ok := n.sender.(Broadcaster); ok {
		_ = b.Broadcast(event)
	}
}

// LogOn confirms a fresh session to one connection, carrying the rooms the
// user is rejoining.
func (n *Notifier) LogOn(connectionID string, user *models.ChatUser, rooms []models.RoomView) {
	n.toConnection(connectionID, Event{Type: EventLogOn, Data: struct {
		User  models.UserView   `json:"user"`
		Rooms []models.RoomView `json:"rooms"`
	}{models.NewUserView(user), rooms}})
}

// LogOut tells every connection of the user that the session ended.
func (n *Notifier) LogOut(user *models.ChatUser) {
	n.toUser(user, Event{Type: EventLogOut, Data: struct {
		Name string `json:"name"`
	}{user.Name}})
}

// JoinedRoom confirms a join to the joining user with the full room snapshot.
func (n *Notifier) JoinedRoom(user *models.ChatUser, room models.RoomView) {
	n.toUser(user, Event{Type: EventJoinRoom, Data: room})
}

// UserJoinedRoom announces a new member to the room.
func (n *Notifier) UserJoinedRoom(user *models.ChatUser, roomName string) {
	n.toRoom(roomName, Event{Type: EventAddUser, Data: struct {
		User models.UserView `json:"user"`
		Room string          `json:"room"`
	}{models.NewUserView(user), roomName}})
}

// UserLeftRoom announces a departure to the room, the leaver included.
func (n *Notifier) UserLeftRoom(user *models.ChatUser, roomName string) {
	n.toRoom(roomName, Event{Type: EventLeave, Data: struct {
		User models.UserView `json:"user"`
		Room string          `json:"room"`
	}{models.NewUserView(user), roomName}})
}

// Kicked tells the target they were ejected from a room.
func (n *Notifier) Kicked(target *models.ChatUser, roomName, by string) {
	n.toUser(target, Event{Type: EventKick, Data: struct {
		Room string `json:"room"`
		By   string `json:"by,omitempty"`
	}{roomName, by}})
}

// AddMessage pushes a new message to the room.
func (n *Notifier) AddMessage(roomName string, message models.MessageView) {
	n.toRoom(roomName, Event{Type: EventAddMessage, Data: struct {
		Room    string             `json:"room"`
		Message models.MessageView `json:"message"`
	}{roomName, message}})
}

// AddMessageContent pushes enrichment for an already-delivered message,
// addressed by its durable id.
func (n *Notifier) AddMessageContent(roomName, messageID, content string) {
	n.toRoom(roomName, Event{Type: EventAddMessageContent, Data: struct {
		Room      string `json:"room"`
		MessageID string `json:"id"`
		Content   string `json:"content"`
	}{roomName, messageID, content}})
}

// MarkInactive pushes one batched idle notice per room.
func (n *Notifier) MarkInactive(roomName string, users []models.UserView) {
	n.toRoom(roomName, Event{Type: EventMarkInactive, Data: struct {
		Room  string            `json:"room"`
		Users []models.UserView `json:"users"`
	}{roomName, users}})
}

// UpdateActivity announces a user returning to Active in a room.
func (n *Notifier) UpdateActivity(user *models.ChatUser, roomName string) {
	n.toRoom(roomName, Event{Type: EventUpdateActivity, Data: struct {
		User models.UserView `json:"user"`
		Room string          `json:"room"`
	}{models.NewUserView(user), roomName}})
}

// UpdateRoomCount refreshes a room's occupancy for lobby listings.
func (n *Notifier) UpdateRoomCount(roomName string, count int) {
	n.toAll(Event{Type: EventUpdateRoomCount, Data: struct {
		Room  string `json:"room"`
		Count int    `json:"count"`
	}{roomName, count}})
}

// Typing relays a typing indicator to the room.
func (n *Notifier) Typing(user *models.ChatUser, roomName string) {
	n.toRoom(roomName, Event{Type: EventSetTyping, Data: struct {
		User models.UserView `json:"user"`
		Room string          `json:"room"`
	}{models.NewUserView(user), roomName}})
}

// TopicChanged announces a room's new rendered topic.
func (n *Notifier) TopicChanged(roomName, topic, by string) {
	n.toRoom(roomName, Event{Type: EventTopicChanged, Data: struct {
		Room  string `json:"room"`
		Topic string `json:"topic"`
		By    string `json:"by"`
	}{roomName, topic, by}})
}

// WelcomeChanged confirms a room's new rendered welcome to the room.
func (n *Notifier) WelcomeChanged(roomName, welcome string) {
	n.toRoom(roomName, Event{Type: EventWelcomeChanged, Data: struct {
		Room    string `json:"room"`
		Welcome string `json:"welcome"`
	}{roomName, welcome}})
}

// NoteChanged announces a user's note to the given rooms.
func (n *Notifier) NoteChanged(user *models.ChatUser, roomNames []string) {
	for _, roomName := range roomNames {
		n.toRoom(roomName, Event{Type: EventChangeNote, Data: struct {
			User models.UserView `json:"user"`
			Room string          `json:"room"`
		}{models.NewUserView(user), roomName}})
	}
}

// FlagChanged announces a user's country flag to the given rooms.
func (n *Notifier) FlagChanged(user *models.ChatUser, roomNames []string) {
	for _, roomName := range roomNames {
		n.toRoom(roomName, Event{Type: EventChangeFlag, Data: struct {
			User models.UserView `json:"user"`
			Room string          `json:"room"`
		}{models.NewUserView(user), roomName}})
	}
}

// GravatarChanged announces a user's avatar hash to the given rooms.
func (n *Notifier) GravatarChanged(user *models.ChatUser, roomNames []string) {
	for _, roomName := range roomNames {
		n.toRoom(roomName, Event{Type: EventChangeGravatar, Data: struct {
			User models.UserView `json:"user"`
			Room string          `json:"room"`
		}{models.NewUserView(user), roomName}})
	}
}

// UserNameChanged announces a rename to the given rooms and to the user.
func (n *Notifier) UserNameChanged(oldName string, user *models.ChatUser, roomNames []string) {
	payload := struct {
		OldName string          `json:"oldName"`
		User    models.UserView `json:"user"`
	}{oldName, models.NewUserView(user)}
	n.toUser(user, Event{Type: EventUserNameChanged, Data: payload})
	for _, roomName := range roomNames {
		n.toRoom(roomName, Event{Type: EventUserNameChanged, Data: payload})
	}
}

// OwnerAdded announces a new room owner to the room.
func (n *Notifier) OwnerAdded(target *models.ChatUser, roomName string) {
	n.toRoom(roomName, Event{Type: EventAddOwner, Data: struct {
		User models.UserView `json:"user"`
		Room string          `json:"room"`
	}{models.NewUserView(target), roomName}})
}

// OwnerRemoved announces a revoked ownership to the room.
func (n *Notifier) OwnerRemoved(target *models.ChatUser, roomName string) {
	n.toRoom(roomName, Event{Type: EventRemoveOwner, Data: struct {
		User models.UserView `json:"user"`
		Room string          `json:"room"`
	}{models.NewUserView(target), roomName}})
}

// UserAllowed confirms an ACL grant to the granting caller.
func (n *Notifier) UserAllowed(connectionID, targetName, roomName string) {
	n.toConnection(connectionID, Event{Type: EventUserAllowed, Data: struct {
		User string `json:"user"`
		Room string `json:"room"`
	}{targetName, roomName}})
}

// UserUnallowed confirms an ACL revocation to the revoking caller.
func (n *Notifier) UserUnallowed(connectionID, targetName, roomName string) {
	n.toConnection(connectionID, Event{Type: EventUserUnallowed, Data: struct {
		User string `json:"user"`
		Room string `json:"room"`
	}{targetName, roomName}})
}

// RoomLocked announces that a room turned private.
func (n *Notifier) RoomLocked(roomName string) {
	n.toRoom(roomName, Event{Type: EventRoomLocked, Data: struct {
		Room string `json:"room"`
	}{roomName}})
}

// RoomClosed announces a room closing.
func (n *Notifier) RoomClosed(roomName string) {
	n.toRoom(roomName, Event{Type: EventRoomClosed, Data: struct {
		Room string `json:"room"`
	}{roomName}})
}

// RoomOpened announces a room reopening.
func (n *Notifier) RoomOpened(roomName string) {
	n.toRoom(roomName, Event{Type: EventRoomOpened, Data: struct {
		Room string `json:"room"`
	}{roomName}})
}

// Nudged pokes the target on all their connections and echoes to the sender.
func (n *Notifier) Nudged(from, to *models.ChatUser) {
	payload := struct {
		From string `json:"from"`
		To   string `json:"to"`
	}{from.Name, to.Name}
	n.toUser(to, Event{Type: EventNudge, Data: payload})
	n.toUser(from, Event{Type: EventNudge, Data: payload})
}

// RoomNudged shakes a whole room.
func (n *Notifier) RoomNudged(from *models.ChatUser, roomName string) {
	n.toRoom(roomName, Event{Type: EventNudge, Data: struct {
		From string `json:"from"`
		Room string `json:"room"`
	}{from.Name, roomName}})
}

// PrivateMessage delivers a whisper to both parties.
func (n *Notifier) PrivateMessage(from, to *models.ChatUser, content string) {
	payload := struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Content string `json:"content"`
	}{from.Name, to.Name, content}
	n.toUser(to, Event{Type: EventPrivateMessage, Data: payload})
	n.toUser(from, Event{Type: EventPrivateMessage, Data: payload})
}

// Broadcast pushes an admin notice to every connection.
func (n *Notifier) Broadcast(content string) {
	n.toAll(Event{Type: EventBroadcast, Data: struct {
		Content string `json:"content"`
	}{content}})
}

// PostNotification pushes a server notice into a room, e.g. an action
// message or an operator notice.
func (n *Notifier) PostNotification(roomName, content string) {
	n.toRoom(roomName, Event{Type: EventPostNotification, Data: struct {
		Room    string `json:"room"`
		Content string `json:"content"`
	}{roomName, content}})
}

// Notify sends a server notice to one connection only.
func (n *Notifier) Notify(connectionID, content string) {
	n.toConnection(connectionID, Event{Type: EventPostNotification, Data: struct {
		Content string `json:"content"`
	}{content}})
}

// Invited delivers a room invite to the target and an ack to the sender.
func (n *Notifier) Invited(from, to *models.ChatUser, roomName string) {
	payload := struct {
		From string `json:"from"`
		To   string `json:"to"`
		Room string `json:"room"`
	}{from.Name, to.Name, roomName}
	n.toUser(to, Event{Type: EventSendInvite, Data: payload})
	n.toUser(from, Event{Type: EventSendInvite, Data: payload})
}

// SendRooms answers a lobby listing on one connection.
func (n *Notifier) SendRooms(connectionID string, rooms []models.RoomView) {
	n.toConnection(connectionID, Event{Type: EventListRooms, Data: rooms})
}

// SendUsers answers a user listing on one connection.
func (n *Notifier) SendUsers(connectionID string, users []models.UserView) {
	n.toConnection(connectionID, Event{Type: EventListUsers, Data: users})
}

// SendCommands answers a help request on one connection.
func (n *Notifier) SendCommands(connectionID string, commands any) {
	n.toConnection(connectionID, Event{Type: EventListCommands, Data: commands})
}

// SendRoomLoaded answers a room snapshot request on one connection.
func (n *Notifier) SendRoomLoaded(connectionID string, room models.RoomView) {
	n.toConnection(connectionID, Event{Type: EventRoomLoaded, Data: room})
}

// SendPreviousMessages answers a history page on one connection.
func (n *Notifier) SendPreviousMessages(connectionID string, messages []models.MessageView) {
	n.toConnection(connectionID, Event{Type: EventPreviousMessages, Data: messages})
}

// ForceUpdate tells every client to reload.
func (n *Notifier) ForceUpdate() {
	n.toAll(Event{Type: EventForceUpdate})
}

// ServerVersion echoes the server build to one connection.
func (n *Notifier) ServerVersion(connectionID, version string) {
	n.toConnection(connectionID, Event{Type: EventServerVersion, Data: struct {
		Version string `json:"version"`
	}{version}})
}

// OutOfSync tells one stale client to reload.
func (n *Notifier) OutOfSync(connectionID string) {
	n.toConnection(connectionID, Event{Type: EventForceUpdate})
}

// Error reports a failed operation back to the originating connection only.
func (n *Notifier) Error(connectionID string, err error) {
	n.toConnection(connectionID, Event{Type: EventError, Data: struct {
		Message string `json:"message"`
	}{err.Error()}})
}
