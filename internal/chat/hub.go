package chat

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"banter/internal/config"
	"banter/internal/models"
	"banter/internal/resolve"
	"banter/internal/storage"
	"banter/internal/transform"
)

// Caller identifies the session behind an operation.
type Caller struct {
	UserID       uint
	ConnectionID string
	UserAgent    string
}

// CommandDispatcher handles slash commands. The hub hands over any message
// starting with "/" and only treats it as chat text when the dispatcher
// declines it.
type CommandDispatcher interface {
	TryHandleCommand(ctx context.Context, caller *Caller, roomName, message string) (bool, error)
}

// NewRoomNamer adapts the repository to the render-time room lookup the text
// transform needs.
func NewRoomNamer(repo storage.Repository) transform.RoomNamer {
	return repoRoomNamer{repo: repo}
}

type repoRoomNamer struct {
	repo storage.Repository
}

func (r repoRoomNamer) LookupRoomName(ctx context.Context, name string) (string, bool) {
	room, err := r.repo.GetRoomByName(ctx, name)
	if err != nil {
		return "", false
	}
	return room.Name, true
}

// Hub is the session-facing surface of the chat engine: every operation a
// connection can perform enters here. It serializes per-user work with a
// keyed lock so concurrent operations from one user's connections cannot
// interleave on presence state.
type Hub struct {
	repo       storage.Repository
	service    *Service
	notifier   *Notifier
	groups     *Groups
	presence   *presenceTracker
	text       *transform.TextTransform
	resolver   *resolve.Processor
	dispatcher CommandDispatcher
	cfg        config.ChatConfig

	requireIdentity bool
	appVersion      string
	logger          *log.Logger

	locksMu   sync.Mutex
	userLocks map[uint]*sync.Mutex
}

// NewHub wires the chat engine together. The command dispatcher is attached
// afterwards via SetDispatcher since commands depend on the hub.
func NewHub(
	repo storage.Repository,
	service *Service,
	notifier *Notifier,
	groups *Groups,
	text *transform.TextTransform,
	resolver *resolve.Processor,
	cfg config.ChatConfig,
	requireIdentity bool,
	logger *log.Logger,
) *Hub {
	return &Hub{
		repo:            repo,
		service:         service,
		notifier:        notifier,
		groups:          groups,
		presence:        newPresenceTracker(),
		text:            text,
		resolver:        resolver,
		cfg:             cfg,
		requireIdentity: requireIdentity,
		logger:          logger,
		userLocks:       make(map[uint]*sync.Mutex),
	}
}

// SetDispatcher attaches the slash-command dispatcher.
func (h *Hub) SetDispatcher(d CommandDispatcher) { h.dispatcher = d }

// SetAppVersion records the build clients should match; CheckStatus compares
// against it.
func (h *Hub) SetAppVersion(version string) { h.appVersion = version }

// Notifier exposes the notifier for command handlers.
func (h *Hub) Notifier() *Notifier { return h.notifier }

// Service exposes the domain service for command handlers.
func (h *Hub) Service() *Service { return h.service }

// Repo exposes the repository for command handlers.
func (h *Hub) Repo() storage.Repository { return h.repo }

// Text exposes the text transform for command handlers.
func (h *Hub) Text() *transform.TextTransform { return h.text }

func (h *Hub) lockUser(userID uint) func() {
	h.locksMu.Lock()
	mu, ok := h.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		h.userLocks[userID] = mu
	}
	h.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// SubscribeUser adds all of a user's connections to a room's broadcasts.
func (h *Hub) SubscribeUser(user *models.ChatUser, roomName string) {
	for _, client := range user.ConnectedClients {
		h.groups.Add(roomName, client.ConnectionID)
	}
}

// UnsubscribeUser removes all of a user's connections from a room.
func (h *Hub) UnsubscribeUser(user *models.ChatUser, roomName string) {
	for _, client := range user.ConnectedClients {
		h.groups.Remove(roomName, client.ConnectionID)
	}
}

// Join starts a session on a fresh connection: it records the client, cancels
// any pending offline transition, resubscribes the user's rooms and confirms
// with a logOn carrying the room list. The rooms only hear about it when the
// user was Offline before this connection.
func (h *Hub) Join(ctx context.Context, caller *Caller) error {
	unlock := h.lockUser(caller.UserID)
	defer unlock()

	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	if h.requireIdentity && user.Identity == "" {
		return ErrIdentityRequired
	}

	h.presence.Cancel(user.ID)
	wasOffline := user.Status == models.StatusOffline

	if err := h.service.AddClient(ctx, user, caller.ConnectionID, caller.UserAgent); err != nil {
		return err
	}
	if _, err := h.service.UpdateActivity(ctx, user); err != nil {
		return err
	}
	if err := h.repo.CommitChanges(ctx); err != nil {
		return err
	}

	// The connecting client gets its room list first; the rooms hear about
	// the arrival after.
	views := make([]models.RoomView, 0, len(user.Rooms))
	for _, room := range user.Rooms {
		h.SubscribeUser(user, room.Name)
		views = append(views, h.roomSummary(ctx, room))
	}
	h.notifier.LogOn(caller.ConnectionID, user, views)

	if wasOffline {
		for _, room := range user.Rooms {
			h.notifier.UserJoinedRoom(user, room.Name)
		}
	}
	return nil
}

// Reconnect restores a session after a transport drop. It always cancels the
// pending offline transition and resubscribes; it announces the user to their
// rooms only when the drop had already taken effect and they were Offline.
func (h *Hub) Reconnect(ctx context.Context, caller *Caller) error {
	unlock := h.lockUser(caller.UserID)
	defer unlock()

	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}

	h.presence.Cancel(user.ID)
	wasOffline := user.Status == models.StatusOffline

	if err := h.service.AddClient(ctx, user, caller.ConnectionID, caller.UserAgent); err != nil {
		return err
	}
	if _, err := h.service.UpdateActivity(ctx, user); err != nil {
		return err
	}
	if err := h.repo.CommitChanges(ctx); err != nil {
		return err
	}

	for _, room := range user.Rooms {
		h.SubscribeUser(user, room.Name)
		if wasOffline {
			h.notifier.UserJoinedRoom(user, room.Name)
		}
	}
	return nil
}

// Disconnect handles a dropped connection. The socket's subscriptions go
// away immediately; the presence transition waits out the grace period so a
// reconnect does not flap the user through Offline.
func (h *Hub) Disconnect(ctx context.Context, connectionID string) {
	h.groups.RemoveConnection(connectionID)

	user, err := h.service.RemoveClient(ctx, connectionID)
	if err != nil {
		h.logger.Printf("disconnect %s: %v", connectionID, err)
		return
	}
	if user == nil {
		return
	}

	userID := user.ID
	h.presence.ScheduleOffline(userID, h.cfg.GracePeriod, func() {
		h.finishDisconnect(userID)
	})
}

func (h *Hub) finishDisconnect(userID uint) {
	ctx := context.Background()

	unlock := h.lockUser(userID)
	defer unlock()

	user, wentOffline, err := h.service.MarkOffline(ctx, userID)
	if err != nil {
		h.logger.Printf("mark offline %d: %v", userID, err)
		return
	}
	if !wentOffline {
		return
	}
	if err := h.repo.CommitChanges(ctx); err != nil {
		h.logger.Printf("mark offline %d: %v", userID, err)
		return
	}

	for _, room := range user.Rooms {
		h.notifier.UserLeftRoom(user, room.Name)
		if online, err := h.repo.OnlineUsersInRoom(ctx, room); err == nil {
			h.notifier.UpdateRoomCount(room.Name, len(online))
		}
	}
}

// Send processes a chat message: slash commands short-circuit to the
// dispatcher, everything else is escaped, transformed, persisted under the
// client's id, broadcast, and finally rekeyed to a durable id before the
// async content resolution starts.
func (h *Hub) Send(ctx context.Context, caller *Caller, roomName, messageID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if strings.HasPrefix(content, "/") && h.dispatcher != nil {
		handled, err := h.dispatcher.TryHandleCommand(ctx, caller, roomName, content)
		if handled || err != nil {
			return err
		}
	}

	unlock := h.lockUser(caller.UserID)
	defer unlock()

	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	room, err := h.repo.VerifyRoom(ctx, roomName, true)
	if err != nil {
		return err
	}
	if !room.HasUser(user) {
		return storage.ErrUserNotInRoom
	}

	statusChanged, err := h.service.UpdateActivity(ctx, user)
	if err != nil {
		return err
	}
	if statusChanged {
		for _, r := range user.Rooms {
			h.notifier.UpdateActivity(user, r.Name)
		}
	}
	if cleared, err := h.service.ClearAfk(ctx, user); err != nil {
		return err
	} else if cleared {
		h.notifier.NoteChanged(user, userRoomNames(user))
	}

	rendered, urls := transform.TransformAndExtractURLs(h.text.Parse(ctx, html.EscapeString(content)))

	message, err := h.service.AddMessage(ctx, user, room, messageID, rendered)
	if err != nil {
		return err
	}
	if err := h.repo.CommitChanges(ctx); err != nil {
		return err
	}
	h.notifier.AddMessage(room.Name, models.NewMessageView(message))

	// Rekey from the client's echo id to the durable id before enrichment, so
	// follow-up content addresses a stable message.
	message.MessageID = uuid.NewString()
	if err := h.repo.SaveMessage(ctx, message); err != nil {
		return err
	}

	if len(urls) > 0 {
		go h.resolveContent(room.Name, message.MessageID, urls)
	}
	return nil
}

// resolveContent runs the per-URL content resolution for one message and
// appends each winning fragment, pushing it under the durable message id.
// URLs resolve sequentially so appended fragments keep a deterministic order;
// the providers for each URL still race inside the processor.
func (h *Hub) resolveContent(roomName, messageID string, urls []string) {
	ctx := context.Background()

	for _, raw := range urls {
		result, err := h.resolver.ExtractResource(ctx, raw)
		if err != nil {
			h.logger.Printf("resolve %s: %v", raw, err)
			continue
		}
		if result == nil {
			continue
		}

		fragment := "<p>" + result.Content + "</p>"
		if err := h.service.AppendMessage(ctx, messageID, fragment); err != nil {
			h.logger.Printf("append content to %s: %v", messageID, err)
			continue
		}
		h.notifier.AddMessageContent(roomName, messageID, fragment)
	}
}

// JoinRoom adds the caller to a room and sends them the room snapshot.
func (h *Hub) JoinRoom(ctx context.Context, caller *Caller, roomName, inviteCode string) error {
	unlock := h.lockUser(caller.UserID)
	defer unlock()

	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	room, err := h.repo.VerifyRoom(ctx, roomName, true)
	if err != nil {
		return err
	}
	if room.HasUser(user) {
		return fmt.Errorf("you are already in %s", room.Name)
	}

	if err := h.service.JoinRoom(ctx, user, room, inviteCode); err != nil {
		return err
	}
	if err := h.repo.CommitChanges(ctx); err != nil {
		return err
	}

	h.notifier.UserJoinedRoom(user, room.Name)
	h.SubscribeUser(user, room.Name)

	snapshot, err := h.roomSnapshot(ctx, room)
	if err != nil {
		return err
	}
	h.notifier.JoinedRoom(user, snapshot)
	h.notifier.UpdateRoomCount(room.Name, snapshot.Count)
	return nil
}

// LeaveRoom removes the caller from a room. The departure is broadcast to
// the whole room, the leaver included, before their subscriptions go.
func (h *Hub) LeaveRoom(ctx context.Context, caller *Caller, roomName string) error {
	unlock := h.lockUser(caller.UserID)
	defer unlock()

	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	room, err := h.repo.VerifyUserRoom(ctx, user, roomName)
	if err != nil {
		return err
	}

	if err := h.service.LeaveRoom(ctx, user, room); err != nil {
		return err
	}
	if err := h.repo.CommitChanges(ctx); err != nil {
		return err
	}

	h.notifier.UserLeftRoom(user, room.Name)
	h.UnsubscribeUser(user, room.Name)

	if online, err := h.repo.OnlineUsersInRoom(ctx, room); err == nil {
		h.notifier.UpdateRoomCount(room.Name, len(online))
	}
	return nil
}

// Typing relays a typing indicator and counts as activity.
func (h *Hub) Typing(ctx context.Context, caller *Caller, roomName string) error {
	unlock := h.lockUser(caller.UserID)
	defer unlock()

	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	if _, err := h.repo.VerifyUserRoom(ctx, user, roomName); err != nil {
		return err
	}
	if _, err := h.service.UpdateActivity(ctx, user); err != nil {
		return err
	}
	h.notifier.Typing(user, roomName)
	return nil
}

// CheckStatus echoes the server build back to the calling connection and
// tells a client reporting a stale build to reload. It never touches
// presence or activity, so a heartbeating-but-idle client still goes
// Inactive on the next sweep.
func (h *Hub) CheckStatus(_ context.Context, caller *Caller, clientVersion string) error {
	h.notifier.ServerVersion(caller.ConnectionID, h.appVersion)
	if h.appVersion != "" && clientVersion != "" && clientVersion != h.appVersion {
		h.notifier.OutOfSync(caller.ConnectionID)
	}
	return nil
}

// UpdateActivity is the activity heartbeat. A user coming back from Inactive
// is re-announced to their rooms.
func (h *Hub) UpdateActivity(ctx context.Context, caller *Caller) error {
	unlock := h.lockUser(caller.UserID)
	defer unlock()

	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	statusChanged, err := h.service.UpdateActivity(ctx, user)
	if err != nil {
		return err
	}
	if statusChanged {
		for _, room := range user.Rooms {
			h.notifier.UpdateActivity(user, room.Name)
		}
	}
	return nil
}

// GetRooms answers the lobby listing with the rooms the caller may enter.
func (h *Hub) GetRooms(ctx context.Context, caller *Caller) error {
	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	rooms, err := h.repo.GetAllowedRooms(ctx, user)
	if err != nil {
		return err
	}
	views := make([]models.RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, h.roomSummary(ctx, room))
	}
	h.notifier.SendRooms(caller.ConnectionID, views)
	return nil
}

// GetRoomInfo answers a full room snapshot. Private rooms answer only for
// users that may enter them.
func (h *Hub) GetRoomInfo(ctx context.Context, caller *Caller, roomName string) error {
	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	room, err := h.repo.GetRoomByName(ctx, roomName)
	if err != nil {
		return err
	}
	if room.Private && !room.HasUser(user) && !room.IsUserAllowed(user) {
		return ErrAccessDenied
	}

	snapshot, err := h.roomSnapshot(ctx, room)
	if err != nil {
		return err
	}
	h.notifier.SendRoomLoaded(caller.ConnectionID, snapshot)
	return nil
}

// GetPreviousMessages answers a history page ending just before the given
// message.
func (h *Hub) GetPreviousMessages(ctx context.Context, caller *Caller, beforeMessageID string) error {
	messages, err := h.repo.PreviousMessages(ctx, beforeMessageID, h.cfg.HistoryMessages)
	if err != nil {
		return err
	}
	h.notifier.SendPreviousMessages(caller.ConnectionID, messageViews(messages))
	return nil
}

// GetUserInfo answers a user profile lookup on the caller's connection.
func (h *Hub) GetUserInfo(ctx context.Context, caller *Caller, name string) error {
	user, err := h.repo.VerifyUser(ctx, name)
	if err != nil {
		return err
	}
	h.notifier.SendUsers(caller.ConnectionID, []models.UserView{models.NewUserView(user)})
	return nil
}

// LogOut ends the session on every connection the caller holds. Token
// revocation happens on the HTTP logout endpoint; this only notifies.
func (h *Hub) LogOut(ctx context.Context, caller *Caller) error {
	user, err := h.repo.VerifyUserID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	h.notifier.LogOut(user)
	return nil
}

func (h *Hub) roomSummary(ctx context.Context, room *models.ChatRoom) models.RoomView {
	view := models.RoomView{
		Name:    room.Name,
		Private: room.Private,
		Closed:  room.Closed,
	}
	if online, err := h.repo.OnlineUsersInRoom(ctx, room); err == nil {
		view.Count = len(online)
	}
	return view
}

func (h *Hub) roomSnapshot(ctx context.Context, room *models.ChatRoom) (models.RoomView, error) {
	view := models.RoomView{
		Name:    room.Name,
		Private: room.Private,
		Closed:  room.Closed,
		Topic:   h.text.ConvertURLsAndRoomLinks(ctx, room.Topic),
		Welcome: h.text.ConvertURLsAndRoomLinks(ctx, room.Welcome),
	}

	online, err := h.repo.OnlineUsersInRoom(ctx, room)
	if err != nil {
		return view, err
	}
	view.Count = len(online)
	view.Users = make([]models.UserView, 0, len(online))
	for _, u := range online {
		view.Users = append(view.Users, models.NewUserView(u))
	}
	for _, owner := range room.Owners {
		view.Owners = append(view.Owners, owner.Name)
	}

	recent, err := h.repo.MessagesByRoom(ctx, room, h.cfg.RoomSnapshotMessages)
	if err != nil {
		return view, err
	}
	view.RecentMessages = messageViews(recent)
	return view, nil
}

func userRoomNames(user *models.ChatUser) []string {
	names := make([]string, 0, len(user.Rooms))
	for _, room := range user.Rooms {
		names = append(names, room.Name)
	}
	return names
}

// messageViews renders a newest-first window in chronological order.
func messageViews(messages []*models.ChatMessage) []models.MessageView {
	views := make([]models.MessageView, len(messages))
	for i, m := range messages {
		views[len(messages)-1-i] = models.NewMessageView(m)
	}
	return views
}
