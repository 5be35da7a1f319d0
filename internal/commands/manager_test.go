package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"banter/internal/chat"
	"banter/internal/config"
	"banter/internal/models"
	"banter/internal/resolve"
	"banter/internal/storage"
	"banter/internal/transform"
)

// stubRepo covers just the repository calls the command paths under test hit.
// Anything else panics through the nil embedded interface.
type stubRepo struct {
	storage.Repository
	mu    sync.Mutex
	users map[uint]*models.ChatUser
	rooms map[string]*models.ChatRoom
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users: make(map[uint]*models.ChatUser),
		rooms: make(map[string]*models.ChatRoom),
	}
}

func (s *stubRepo) VerifyUserID(_ context.Context, id uint) (*models.ChatUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (s *stubRepo) GetUserByName(_ context.Context, name string) (*models.ChatUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Name, name) {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *stubRepo) VerifyUser(ctx context.Context, name string) (*models.ChatUser, error) {
	return s.GetUserByName(ctx, name)
}

func (s *stubRepo) GetRoomByName(_ context.Context, name string) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[strings.ToLower(name)]
	if !ok {
		return nil, storage.ErrRoomNotFound
	}
	return room, nil
}

func (s *stubRepo) VerifyRoom(ctx context.Context, name string, mustBeOpen bool) (*models.ChatRoom, error) {
	room, err := s.GetRoomByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if mustBeOpen && room.Closed {
		return nil, storage.ErrRoomClosed
	}
	return room, nil
}

func (s *stubRepo) SaveUser(_ context.Context, _ *models.ChatUser) error { return nil }
func (s *stubRepo) SaveRoom(_ context.Context, _ *models.ChatRoom) error { return nil }
func (s *stubRepo) CommitChanges(_ context.Context) error                { return nil }

type eventLog struct {
	mu     sync.Mutex
	events map[string][]chat.Event
}

func newEventLog() *eventLog {
	return &eventLog{events: make(map[string][]chat.Event)}
}

func (l *eventLog) SendEvent(connectionID string, event chat.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[connectionID] = append(l.events[connectionID], event)
	return nil
}

func (l *eventLog) find(connectionID, eventType string) (chat.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range l.events[connectionID] {
		if event.Type == eventType {
			return event, true
		}
	}
	return chat.Event{}, false
}

func newTestManager(t *testing.T, repo *stubRepo, sender *eventLog) *Manager {
	t.Helper()

	groups := chat.NewGroups()
	notifier := chat.NewNotifier(groups, sender, nil)
	hub := chat.NewHub(
		repo,
		chat.NewService(repo),
		notifier,
		groups,
		transform.New(chat.NewRoomNamer(repo)),
		resolve.NewProcessor(time.Second),
		config.ChatConfig{GracePeriod: 20 * time.Millisecond, HistoryMessages: 100, RoomSnapshotMessages: 30},
		false,
		log.New(os.Stderr, "", 0),
	)
	manager := NewManager(hub)
	hub.SetDispatcher(manager)
	return manager
}

func seedUser(repo *stubRepo, id uint, name, connectionID string) *models.ChatUser {
	user := &models.ChatUser{
		BaseModel: models.BaseModel{ID: id},
		Name:      name,
		Status:    models.StatusActive,
	}
	if connectionID != "" {
		user.ConnectedClients = []*models.ChatClient{{ConnectionID: connectionID, UserID: id}}
	}
	repo.users[id] = user
	return user
}

func TestUnknownCommandIsAnError(t *testing.T) {
	repo := newStubRepo()
	m := newTestManager(t, repo, newEventLog())

	handled, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1, ConnectionID: "c1"}, "", "/frobnicate now")
	if !handled {
		t.Fatalf("expected a slash word to be claimed by the dispatcher")
	}
	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) || unknown.Command != "frobnicate" {
		t.Fatalf("expected UnknownCommandError for frobnicate, got %v", err)
	}
}

func TestDoubleSlashIsLiteralText(t *testing.T) {
	repo := newStubRepo()
	m := newTestManager(t, repo, newEventLog())

	handled, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1}, "", "//slashes for everyone")
	if handled || err != nil {
		t.Fatalf("expected a doubled slash to fall through as text, got handled=%v err=%v", handled, err)
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	repo := newStubRepo()
	sender := newEventLog()
	m := newTestManager(t, repo, sender)
	seedUser(repo, 1, "alice", "c1")

	handled, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1, ConnectionID: "c1"}, "", "/help")
	if !handled || err != nil {
		t.Fatalf("help failed: handled=%v err=%v", handled, err)
	}

	event, ok := sender.find("c1", chat.EventListCommands)
	if !ok {
		t.Fatalf("expected a listCommands answer")
	}
	list, ok := event.Data.([]commandHelp)
	if !ok {
		t.Fatalf("unexpected help payload %T", event.Data)
	}
	if len(list) != len(m.Commands()) {
		t.Fatalf("expected %d commands in help, got %d", len(m.Commands()), len(list))
	}
}

func TestMissingArgumentsIsAValidationError(t *testing.T) {
	repo := newStubRepo()
	m := newTestManager(t, repo, newEventLog())
	seedUser(repo, 1, "alice", "c1")

	handled, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1, ConnectionID: "c1"}, "", "/msg")
	if !handled {
		t.Fatalf("expected the dispatcher to claim the command")
	}
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected a ValidationError, got %v", err)
	}
	if !strings.Contains(invalid.Message, "usage:") {
		t.Fatalf("expected a usage hint, got %q", invalid.Message)
	}
}

func TestNickRenamesAndNotifies(t *testing.T) {
	repo := newStubRepo()
	sender := newEventLog()
	m := newTestManager(t, repo, sender)
	alice := seedUser(repo, 1, "alice", "c1")

	handled, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1, ConnectionID: "c1"}, "", "/nick gopher")
	if !handled || err != nil {
		t.Fatalf("nick failed: handled=%v err=%v", handled, err)
	}
	if alice.Name != "gopher" {
		t.Fatalf("expected rename, got %q", alice.Name)
	}
	if _, ok := sender.find("c1", chat.EventUserNameChanged); !ok {
		t.Fatalf("expected a rename notification to the user")
	}
}

func TestNickRejectsTakenName(t *testing.T) {
	repo := newStubRepo()
	m := newTestManager(t, repo, newEventLog())
	seedUser(repo, 1, "alice", "c1")
	seedUser(repo, 2, "bob", "")

	_, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1, ConnectionID: "c1"}, "", "/nick BOB")
	if !errors.Is(err, chat.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestKickRequiresOwnership(t *testing.T) {
	repo := newStubRepo()
	m := newTestManager(t, repo, newEventLog())
	alice := seedUser(repo, 1, "alice", "c1")
	bob := seedUser(repo, 2, "bob", "c2")

	room := &models.ChatRoom{BaseModel: models.BaseModel{ID: 10}, Name: "go", Users: []*models.ChatUser{alice, bob}}
	repo.rooms["go"] = room

	_, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1, ConnectionID: "c1"}, "go", "/kick @bob")
	if !errors.Is(err, chat.ErrNotRoomOwner) {
		t.Fatalf("expected ErrNotRoomOwner, got %v", err)
	}
}

func TestMsgEscapesContent(t *testing.T) {
	repo := newStubRepo()
	sender := newEventLog()
	m := newTestManager(t, repo, sender)
	seedUser(repo, 1, "alice", "c1")
	seedUser(repo, 2, "bob", "c2")

	handled, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1, ConnectionID: "c1"}, "", "/msg @bob <script>hi</script>")
	if !handled || err != nil {
		t.Fatalf("msg failed: handled=%v err=%v", handled, err)
	}

	event, ok := sender.find("c2", chat.EventPrivateMessage)
	if !ok {
		t.Fatalf("expected the target to get the whisper")
	}
	payload, _ := json.Marshal(event.Data)
	if strings.Contains(string(payload), "<script>") {
		t.Fatalf("expected escaped content, got %s", payload)
	}
}

func TestBroadcastRequiresAdmin(t *testing.T) {
	repo := newStubRepo()
	m := newTestManager(t, repo, newEventLog())
	seedUser(repo, 1, "alice", "c1")

	_, err := m.TryHandleCommand(context.Background(), &chat.Caller{UserID: 1, ConnectionID: "c1"}, "", "/broadcast hello all")
	if !errors.Is(err, chat.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}
