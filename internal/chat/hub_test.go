package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"banter/internal/config"
	"banter/internal/models"
	"banter/internal/resolve"
	"banter/internal/storage"
	"banter/internal/transform"
)

// memRepo is an in-memory storage.Repository. Like the real one it hands back
// live pointers and keeps association slices in sync on both sides.
type memRepo struct {
	mu       sync.Mutex
	users    map[uint]*models.ChatUser
	rooms    map[string]*models.ChatRoom
	clients  map[string]*models.ChatClient
	messages []*models.ChatMessage
	nextID   uint
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:   make(map[uint]*models.ChatUser),
		rooms:   make(map[string]*models.ChatRoom),
		clients: make(map[string]*models.ChatClient),
	}
}

func (m *memRepo) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memRepo) CreateUser(_ context.Context, user *models.ChatUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = m.id()
	m.users[user.ID] = user
	return nil
}

func (m *memRepo) GetUserByID(_ context.Context, id uint) (*models.ChatUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (m *memRepo) GetUserByName(_ context.Context, name string) (*models.ChatUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Name, name) {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *memRepo) GetUserByClientID(_ context.Context, connectionID string) (*models.ChatUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[connectionID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return m.users[client.UserID], nil
}

func (m *memRepo) VerifyUserID(ctx context.Context, id uint) (*models.ChatUser, error) {
	return m.GetUserByID(ctx, id)
}

func (m *memRepo) VerifyUser(ctx context.Context, name string) (*models.ChatUser, error) {
	return m.GetUserByName(ctx, name)
}

func (m *memRepo) SaveUser(_ context.Context, _ *models.ChatUser) error { return nil }

func (m *memRepo) OnlineUsers(_ context.Context) ([]*models.ChatUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatUser
	for _, user := range m.users {
		if user.Status != models.StatusOffline {
			out = append(out, user)
		}
	}
	return out, nil
}

func (m *memRepo) CreateRoom(_ context.Context, room *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.ID = m.id()
	m.rooms[strings.ToLower(room.Name)] = room
	return nil
}

func (m *memRepo) GetRoomByName(_ context.Context, name string) (*models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[strings.ToLower(name)]
	if !ok {
		return nil, storage.ErrRoomNotFound
	}
	return room, nil
}

func (m *memRepo) VerifyRoom(ctx context.Context, name string, mustBeOpen bool) (*models.ChatRoom, error) {
	room, err := m.GetRoomByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if mustBeOpen && room.Closed {
		return nil, storage.ErrRoomClosed
	}
	return room, nil
}

func (m *memRepo) VerifyUserRoom(ctx context.Context, user *models.ChatUser, roomName string) (*models.ChatRoom, error) {
	room, err := m.GetRoomByName(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if !room.HasUser(user) {
		return nil, storage.ErrUserNotInRoom
	}
	return room, nil
}

func (m *memRepo) SaveRoom(_ context.Context, _ *models.ChatRoom) error { return nil }

func (m *memRepo) Rooms(_ context.Context) ([]*models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatRoom
	for _, room := range m.rooms {
		out = append(out, room)
	}
	return out, nil
}

func (m *memRepo) GetAllowedRooms(_ context.Context, user *models.ChatUser) ([]*models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatRoom
	for _, room := range m.rooms {
		if room.IsUserAllowed(user) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (m *memRepo) OnlineUsersInRoom(_ context.Context, room *models.ChatRoom) ([]*models.ChatUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatUser
	for _, user := range room.Users {
		if user.Status != models.StatusOffline {
			out = append(out, user)
		}
	}
	return out, nil
}

func (m *memRepo) AddUserToRoom(_ context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.Users = append(room.Users, user)
	user.Rooms = append(user.Rooms, room)
	return nil
}

func (m *memRepo) RemoveUserFromRoom(_ context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.Users = dropUser(room.Users, user.ID)
	user.Rooms = dropRoom(user.Rooms, room.ID)
	return nil
}

func (m *memRepo) AddOwner(_ context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.Owners = append(room.Owners, user)
	user.OwnedRooms = append(user.OwnedRooms, room)
	return nil
}

func (m *memRepo) RemoveOwner(_ context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.Owners = dropUser(room.Owners, user.ID)
	user.OwnedRooms = dropRoom(user.OwnedRooms, room.ID)
	return nil
}

func (m *memRepo) AllowUser(_ context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.AllowedUsers = append(room.AllowedUsers, user)
	user.AllowedRooms = append(user.AllowedRooms, room)
	return nil
}

func (m *memRepo) UnallowUser(_ context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.AllowedUsers = dropUser(room.AllowedUsers, user.ID)
	user.AllowedRooms = dropRoom(user.AllowedRooms, room.ID)
	return nil
}

func (m *memRepo) AddClient(_ context.Context, client *models.ChatClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client.ID = m.id()
	m.clients[client.ConnectionID] = client
	return nil
}

func (m *memRepo) RemoveClient(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[connectionID]
	if !ok {
		return nil
	}
	delete(m.clients, connectionID)
	if user, ok := m.users[client.UserID]; ok {
		kept := user.ConnectedClients[:0]
		for _, c := range user.ConnectedClients {
			if c.ConnectionID != connectionID {
				kept = append(kept, c)
			}
		}
		user.ConnectedClients = kept
	}
	return nil
}

func (m *memRepo) RemoveAllClients(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = make(map[string]*models.ChatClient)
	for _, user := range m.users {
		user.ConnectedClients = nil
	}
	return nil
}

func (m *memRepo) AddMessage(_ context.Context, message *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	message.ID = m.id()
	m.messages = append(m.messages, message)
	return nil
}

func (m *memRepo) SaveMessage(_ context.Context, _ *models.ChatMessage) error { return nil }

func (m *memRepo) GetMessageByID(_ context.Context, messageID string) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, message := range m.messages {
		if message.MessageID == messageID {
			return message, nil
		}
	}
	return nil, storage.ErrMessageNotFound
}

func (m *memRepo) MessagesByRoom(_ context.Context, room *models.ChatRoom, limit int) ([]*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatMessage
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.messages[i].RoomID == room.ID {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

func (m *memRepo) PreviousMessages(ctx context.Context, beforeMessageID string, limit int) ([]*models.ChatMessage, error) {
	anchor, err := m.GetMessageByID(ctx, beforeMessageID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatMessage
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.messages[i]
		if msg.RoomID == anchor.RoomID && msg.When.Before(anchor.When) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memRepo) CommitChanges(_ context.Context) error { return nil }

func dropUser(users []*models.ChatUser, id uint) []*models.ChatUser {
	out := users[:0]
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

func dropRoom(rooms []*models.ChatRoom, id uint) []*models.ChatRoom {
	out := rooms[:0]
	for _, r := range rooms {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// captureSender records every event per connection plus the global delivery
// order.
type captureSender struct {
	mu     sync.Mutex
	events map[string][]Event
	order  []sentEvent
}

type sentEvent struct {
	connectionID string
	event        Event
}

func newCaptureSender() *captureSender {
	return &captureSender{events: make(map[string][]Event)}
}

func (c *captureSender) SendEvent(connectionID string, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[connectionID] = append(c.events[connectionID], event)
	c.order = append(c.order, sentEvent{connectionID, event})
	return nil
}

func (c *captureSender) Broadcast(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for connectionID := range c.events {
		c.events[connectionID] = append(c.events[connectionID], event)
		c.order = append(c.order, sentEvent{connectionID, event})
	}
	return nil
}

func (c *captureSender) firstIndex(connectionID, eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sent := range c.order {
		if sent.connectionID == connectionID && sent.event.Type == eventType {
			return i
		}
	}
	return -1
}

func (c *captureSender) lastIndex(connectionID, eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.order) - 1; i >= 0; i-- {
		if c.order[i].connectionID == connectionID && c.order[i].event.Type == eventType {
			return i
		}
	}
	return -1
}

func (c *captureSender) track(connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[connectionID]; !ok {
		c.events[connectionID] = nil
	}
}

func (c *captureSender) count(connectionID, eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, event := range c.events[connectionID] {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func (c *captureSender) last(connectionID, eventType string) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events[connectionID]) - 1; i >= 0; i-- {
		if c.events[connectionID][i].Type == eventType {
			return c.events[connectionID][i], true
		}
	}
	return Event{}, false
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		GracePeriod:          20 * time.Millisecond,
		SweepInterval:        time.Minute,
		IdleAfter:            15 * time.Minute,
		RoomSnapshotMessages: 30,
		HistoryMessages:      100,
	}
}

func newTestHub(t *testing.T, repo *memRepo, sender *captureSender, providers ...resolve.Provider) *Hub {
	t.Helper()

	logger := log.New(os.Stderr, "", 0)
	groups := NewGroups()
	notifier := NewNotifier(groups, sender, nil)
	service := NewService(repo)
	text := transform.New(NewRoomNamer(repo))
	resolver := resolve.NewProcessor(time.Second, providers...)

	return NewHub(repo, service, notifier, groups, text, resolver, testChatConfig(), false, logger)
}

func addUser(t *testing.T, repo *memRepo, name string) *models.ChatUser {
	t.Helper()
	user := &models.ChatUser{Name: name, Status: models.StatusOffline, LastActivity: time.Now().UTC()}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func addRoom(t *testing.T, repo *memRepo, name string, members ...*models.ChatUser) *models.ChatRoom {
	t.Helper()
	room := &models.ChatRoom{Name: name}
	if err := repo.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, member := range members {
		if err := repo.AddUserToRoom(context.Background(), member, room); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return room
}

func join(t *testing.T, hub *Hub, user *models.ChatUser, connectionID string) *Caller {
	t.Helper()
	caller := &Caller{UserID: user.ID, ConnectionID: connectionID}
	if err := hub.Join(context.Background(), caller); err != nil {
		t.Fatalf("join: %v", err)
	}
	return caller
}

func TestJoinSubscribesRoomsAndConfirms(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	addRoom(t, repo, "go", alice)

	join(t, hub, alice, "conn-a")

	if !hub.groups.InGroup("go", "conn-a") {
		t.Fatalf("expected connection subscribed to the room")
	}
	if sender.count("conn-a", EventLogOn) != 1 {
		t.Fatalf("expected one logOn confirmation")
	}
	if alice.Status != models.StatusActive {
		t.Fatalf("expected user active after join, got %v", alice.Status)
	}
}

func TestJoinConfirmsBeforeAnnouncing(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	addRoom(t, repo, "go", alice, bob)
	join(t, hub, bob, "conn-b")
	join(t, hub, alice, "conn-a")

	logOn := sender.firstIndex("conn-a", EventLogOn)
	arrival := sender.lastIndex("conn-b", EventAddUser)
	if logOn == -1 || arrival == -1 {
		t.Fatalf("expected both a logOn and an arrival broadcast, got %d and %d", logOn, arrival)
	}
	if arrival < logOn {
		t.Fatalf("expected the connecting client confirmed before the room hears about it")
	}
}

func TestCheckStatusLeavesPresenceAlone(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)
	hub.SetAppVersion("1.4.0")

	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	addRoom(t, repo, "go", alice, bob)
	caller := join(t, hub, alice, "conn-a")
	join(t, hub, bob, "conn-b")

	alice.Status = models.StatusInactive
	stale := time.Now().Add(-20 * time.Minute)
	alice.LastActivity = stale

	if err := hub.CheckStatus(context.Background(), caller, "1.4.0"); err != nil {
		t.Fatalf("check status: %v", err)
	}

	if alice.Status != models.StatusInactive {
		t.Fatalf("expected a status check to leave presence alone, got %v", alice.Status)
	}
	if !alice.LastActivity.Equal(stale) {
		t.Fatalf("expected last activity untouched by a status check")
	}
	if sender.count("conn-b", EventUpdateActivity) != 0 {
		t.Fatalf("expected no activity broadcast from a status check")
	}

	event, ok := sender.last("conn-a", EventServerVersion)
	if !ok {
		t.Fatalf("expected the server version echoed back")
	}
	payload, _ := json.Marshal(event.Data)
	if !strings.Contains(string(payload), "1.4.0") {
		t.Fatalf("expected the version in the echo, got %s", payload)
	}
	if sender.count("conn-a", EventForceUpdate) != 0 {
		t.Fatalf("expected no reload for a matching build")
	}

	if err := hub.CheckStatus(context.Background(), caller, "1.3.9"); err != nil {
		t.Fatalf("check status: %v", err)
	}
	if sender.count("conn-a", EventForceUpdate) != 1 {
		t.Fatalf("expected a stale build told to reload")
	}
}

func TestUpdateActivityReannouncesInactiveUser(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	addRoom(t, repo, "go", alice, bob)
	caller := join(t, hub, alice, "conn-a")
	join(t, hub, bob, "conn-b")

	alice.Status = models.StatusInactive
	before := sender.count("conn-b", EventUpdateActivity)

	if err := hub.UpdateActivity(context.Background(), caller); err != nil {
		t.Fatalf("update activity: %v", err)
	}

	if alice.Status != models.StatusActive {
		t.Fatalf("expected the heartbeat to reactivate the user, got %v", alice.Status)
	}
	if sender.count("conn-b", EventUpdateActivity) != before+1 {
		t.Fatalf("expected the room to hear about the user waking up")
	}
}

func TestSendBroadcastsUnderClientIDThenRekeys(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	addRoom(t, repo, "go", alice, bob)
	caller := join(t, hub, alice, "conn-a")
	join(t, hub, bob, "conn-b")

	if err := hub.Send(context.Background(), caller, "go", "client-1", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, conn := range []string{"conn-a", "conn-b"} {
		event, ok := sender.last(conn, EventAddMessage)
		if !ok {
			t.Fatalf("expected addMessage on %s", conn)
		}
		payload, _ := json.Marshal(event.Data)
		if !strings.Contains(string(payload), `"client-1"`) {
			t.Fatalf("expected broadcast under the client id, got %s", payload)
		}
	}

	if len(repo.messages) != 1 {
		t.Fatalf("expected one stored message, got %d", len(repo.messages))
	}
	if repo.messages[0].MessageID == "client-1" || repo.messages[0].MessageID == "" {
		t.Fatalf("expected stored message rekeyed to a durable id, got %q", repo.messages[0].MessageID)
	}
}

func TestSendToClosedRoomFails(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	room := addRoom(t, repo, "go", alice)
	caller := join(t, hub, alice, "conn-a")
	room.Closed = true

	err := hub.Send(context.Background(), caller, "go", "client-1", "hello")
	if !errors.Is(err, storage.ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
	if sender.count("conn-a", EventAddMessage) != 0 {
		t.Fatalf("expected no broadcast into a closed room")
	}
	if len(repo.messages) != 0 {
		t.Fatalf("expected nothing persisted for a closed room")
	}
}

func TestSendRequiresMembership(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	addRoom(t, repo, "go", bob)
	caller := join(t, hub, alice, "conn-a")

	err := hub.Send(context.Background(), caller, "go", "client-1", "hello")
	if !errors.Is(err, storage.ErrUserNotInRoom) {
		t.Fatalf("expected ErrUserNotInRoom, got %v", err)
	}
}

func TestReconnectWithinGraceDoesNotFlap(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	addRoom(t, repo, "go", alice, bob)
	join(t, hub, alice, "conn-a")
	join(t, hub, bob, "conn-b")

	leavesBefore := sender.count("conn-b", EventLeave)
	joinsBefore := sender.count("conn-b", EventAddUser)

	hub.Disconnect(context.Background(), "conn-a")
	if err := hub.Reconnect(context.Background(), &Caller{UserID: alice.ID, ConnectionID: "conn-a2"}); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if alice.Status == models.StatusOffline {
		t.Fatalf("expected user to stay online across a quick reconnect")
	}
	if got := sender.count("conn-b", EventLeave); got != leavesBefore {
		t.Fatalf("expected no leave broadcast, got %d extra", got-leavesBefore)
	}
	if got := sender.count("conn-b", EventAddUser); got != joinsBefore {
		t.Fatalf("expected no rejoin broadcast, got %d extra", got-joinsBefore)
	}
	if !hub.groups.InGroup("go", "conn-a2") {
		t.Fatalf("expected new connection subscribed to the room")
	}
}

func TestDisconnectAfterGraceGoesOffline(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	addRoom(t, repo, "go", alice, bob)
	join(t, hub, alice, "conn-a")
	join(t, hub, bob, "conn-b")

	hub.Disconnect(context.Background(), "conn-a")
	time.Sleep(80 * time.Millisecond)

	if alice.Status != models.StatusOffline {
		t.Fatalf("expected user offline after the grace period, got %v", alice.Status)
	}
	if sender.count("conn-b", EventLeave) != 1 {
		t.Fatalf("expected one leave broadcast to the room")
	}

	joinsBefore := sender.count("conn-b", EventAddUser)
	if err := hub.Reconnect(context.Background(), &Caller{UserID: alice.ID, ConnectionID: "conn-a2"}); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if sender.count("conn-b", EventAddUser) != joinsBefore+1 {
		t.Fatalf("expected the room to hear about the user coming back")
	}
}

func TestJoinRoomPrivateGate(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	room := addRoom(t, repo, "sekrit")
	room.Private = true
	room.InviteCode = "123456"
	caller := join(t, hub, alice, "conn-a")

	if err := hub.JoinRoom(context.Background(), caller, "sekrit", ""); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied without a code, got %v", err)
	}
	if err := hub.JoinRoom(context.Background(), caller, "sekrit", "999999"); !errors.Is(err, ErrInvalidInviteCode) {
		t.Fatalf("expected ErrInvalidInviteCode, got %v", err)
	}
	if err := hub.JoinRoom(context.Background(), caller, "sekrit", "123456"); err != nil {
		t.Fatalf("expected join with the right code, got %v", err)
	}
	if !room.HasUser(alice) {
		t.Fatalf("expected membership after invite-code join")
	}
	if !alice.IsAllowed(room) {
		t.Fatalf("expected an ACL grant after invite-code join")
	}
}

func TestLeaveRoomBroadcastsBeforeUnsubscribe(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender)

	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	room := addRoom(t, repo, "go", alice, bob)
	caller := join(t, hub, alice, "conn-a")
	join(t, hub, bob, "conn-b")

	if err := hub.LeaveRoom(context.Background(), caller, "go"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if sender.count("conn-a", EventLeave) != 1 {
		t.Fatalf("expected the leaver to see their own departure")
	}
	if sender.count("conn-b", EventLeave) != 1 {
		t.Fatalf("expected the room to see the departure")
	}
	if hub.groups.InGroup("go", "conn-a") {
		t.Fatalf("expected the leaver unsubscribed")
	}
	if room.HasUser(alice) {
		t.Fatalf("expected membership removed")
	}
}

type staticProvider struct {
	content string
}

func (s *staticProvider) IsValidContent(_ *url.URL) bool { return true }

func (s *staticProvider) GetContent(_ context.Context, req *resolve.Request) (*resolve.ContentResult, error) {
	return &resolve.ContentResult{URL: req.URL.String(), Content: s.content}, nil
}

func TestSendEnrichmentArrivesUnderDurableID(t *testing.T) {
	repo := newMemRepo()
	sender := newCaptureSender()
	hub := newTestHub(t, repo, sender, &staticProvider{content: "a preview"})

	alice := addUser(t, repo, "alice")
	addRoom(t, repo, "go", alice)
	caller := join(t, hub, alice, "conn-a")

	if err := hub.Send(context.Background(), caller, "go", "client-1", "look http://x.test/a"); err != nil {
		t.Fatalf("send: %v", err)
	}

	durable := repo.messages[0].MessageID
	deadline := time.Now().Add(2 * time.Second)
	for {
		if event, ok := sender.last("conn-a", EventAddMessageContent); ok {
			payload, _ := json.Marshal(event.Data)
			if !strings.Contains(string(payload), durable) {
				t.Fatalf("expected enrichment under durable id %q, got %s", durable, payload)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for addMessageContent")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !strings.Contains(repo.messages[0].Content, "a preview") {
		t.Fatalf("expected enrichment appended to the stored message, got %q", repo.messages[0].Content)
	}
}
