package chat

// Event is the outbound frame pushed to clients. Type selects the client
// handler, Data is the handler-specific payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Sender delivers an event to a single connection. The websocket layer
// implements it; delivery is best effort and must not block the caller.
type Sender interface {
	SendEvent(connectionID string, event Event) error
}

// Journal records room events for out-of-band consumers. Implementations must
// be safe to call from broadcast paths and must never block them.
type Journal interface {
	Record(eventType, room string, payload any)
}

// Event type names pushed to clients.
const (
	EventLogOn             = "logOn"
	EventLogOut            = "logOut"
	EventJoinRoom          = "joinRoom"
	EventAddUser           = "addUser"
	EventLeave             = "leave"
	EventKick              = "kick"
	EventAddMessage        = "addMessage"
	EventAddMessageContent = "addMessageContent"
	EventPreviousMessages  = "previousMessages"
	EventRoomLoaded        = "roomLoaded"
	EventListRooms         = "listRooms"
	EventListUsers         = "listUsers"
	EventListCommands      = "listCommands"
	EventListAllowedUsers  = "listAllowedUsers"
	EventMarkInactive      = "markInactive"
	EventUpdateActivity    = "updateActivity"
	EventUpdateRoomCount   = "updateRoomCount"
	EventSetTyping         = "setTyping"
	EventTopicChanged      = "topicChanged"
	EventWelcomeChanged    = "welcomeChanged"
	EventChangeNote        = "changeNote"
	EventChangeFlag        = "changeFlag"
	EventChangeGravatar    = "changeGravatar"
	EventUserNameChanged   = "userNameChanged"
	EventAddOwner          = "addOwner"
	EventRemoveOwner       = "removeOwner"
	EventUserAllowed       = "userAllowed"
	EventUserUnallowed     = "userUnallowed"
	EventRoomLocked        = "roomLocked"
	EventRoomClosed        = "roomClosed"
	EventRoomOpened        = "roomOpened"
	EventNudge             = "nudge"
	EventPrivateMessage    = "sendPrivateMessage"
	EventBroadcast         = "broadcastMessage"
	EventPostNotification  = "postNotification"
	EventSendInvite        = "sendInvite"
	EventServerVersion     = "serverVersion"
	EventForceUpdate       = "forceUpdate"
	EventError             = "serverError"
)
