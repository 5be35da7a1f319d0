package chat

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"banter/internal/models"
	"banter/internal/storage"
)

var namePattern = regexp.MustCompile(`^[\w-]{1,30}$`)

// Service owns the domain rules of the chat engine: who may join, own, close
// and moderate rooms, and how messages and presence records are written. It
// mutates state only; pushing the effects to clients is the Notifier's job.
type Service struct {
	repo storage.Repository
}

// NewService creates a Service over the given repository.
func NewService(repo storage.Repository) *Service {
	return &Service{repo: repo}
}

// AddClient records a live connection for the user.
func (s *Service) AddClient(ctx context.Context, user *models.ChatUser, connectionID, userAgent string) error {
	client := &models.ChatClient{
		ConnectionID: connectionID,
		UserID:       user.ID,
		UserAgent:    userAgent,
		LastActivity: time.Now().UTC(),
	}
	if err := s.repo.AddClient(ctx, client); err != nil {
		return fmt.Errorf("add client %s: %w", connectionID, err)
	}
	user.ConnectedClients = append(user.ConnectedClients, client)
	return nil
}

// RemoveClient drops a connection record and returns its user, or nil when
// the connection was unknown.
func (s *Service) RemoveClient(ctx context.Context, connectionID string) (*models.ChatUser, error) {
	user, err := s.repo.GetUserByClientID(ctx, connectionID)
	if err != nil {
		if err == storage.ErrUserNotFound {
			return nil, nil
		}
		return nil, err
	}
	if err := s.repo.RemoveClient(ctx, connectionID); err != nil {
		return nil, err
	}
	return user, nil
}

// MarkOffline finalizes a disconnect after the grace period. It reports
// whether the user actually went offline; a reconnect that landed in the
// meantime leaves them online and the transition is dropped.
func (s *Service) MarkOffline(ctx context.Context, userID uint) (*models.ChatUser, bool, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if len(user.ConnectedClients) > 0 {
		return user, false, nil
	}
	if user.Status == models.StatusOffline {
		return user, false, nil
	}
	user.Status = models.StatusOffline
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// UpdateActivity bumps the user's activity clock and flips them back to
// Active. It reports whether the visible status changed.
func (s *Service) UpdateActivity(ctx context.Context, user *models.ChatUser) (bool, error) {
	changed := user.Status != models.StatusActive
	user.Status = models.StatusActive
	user.LastActivity = time.Now().UTC()
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return false, err
	}
	return changed, nil
}

// ClearAfk drops the away marker when the user speaks again. The activity
// heartbeat deliberately does not clear it. It reports whether anything
// changed.
func (s *Service) ClearAfk(ctx context.Context, user *models.ChatUser) (bool, error) {
	if !user.IsAfk {
		return false, nil
	}
	user.IsAfk = false
	user.AfkNote = ""
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// AddMessage persists a chat message under the given wire id.
func (s *Service) AddMessage(ctx context.Context, user *models.ChatUser, room *models.ChatRoom, messageID, content string) (*models.ChatMessage, error) {
	message := &models.ChatMessage{
		MessageID: messageID,
		RoomID:    room.ID,
		UserID:    user.ID,
		Content:   content,
		When:      time.Now().UTC(),
		User:      user,
		Room:      room,
	}
	if err := s.repo.AddMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("add message to %s: %w", room.Name, err)
	}
	return message, nil
}

// AppendMessage appends enrichment content to a stored message.
func (s *Service) AppendMessage(ctx context.Context, messageID, content string) error {
	message, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	message.Content += content
	return s.repo.SaveMessage(ctx, message)
}

// CreateRoom creates a room with the caller as creator and first owner. The
// caller is not joined; joining is a separate step.
func (s *Service) CreateRoom(ctx context.Context, creator *models.ChatUser, name string) (*models.ChatRoom, error) {
	if !namePattern.MatchString(name) || strings.EqualFold(name, "lobby") {
		return nil, ErrInvalidRoomName
	}
	if _, err := s.repo.GetRoomByName(ctx, name); err == nil {
		return nil, ErrRoomExists
	} else if err != storage.ErrRoomNotFound {
		return nil, err
	}

	room := &models.ChatRoom{Name: name, CreatorID: creator.ID}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room %s: %w", name, err)
	}
	if err := s.repo.AddOwner(ctx, creator, room); err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoom adds the user to a room, enforcing the private-room gate: an ACL
// grant admits directly, a valid invite code admits and grants, anything else
// is denied.
func (s *Service) JoinRoom(ctx context.Context, user *models.ChatUser, room *models.ChatRoom, inviteCode string) error {
	if room.Private && !room.IsUserAllowed(user) {
		if inviteCode == "" || room.InviteCode == "" || inviteCode != room.InviteCode {
			if inviteCode != "" {
				return ErrInvalidInviteCode
			}
			return ErrAccessDenied
		}
		if err := s.repo.AllowUser(ctx, user, room); err != nil {
			return err
		}
	}
	if room.HasUser(user) {
		return nil
	}
	return s.repo.AddUserToRoom(ctx, user, room)
}

// LeaveRoom removes the user from a room. Ownership and ACL grants survive.
func (s *Service) LeaveRoom(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	if !room.HasUser(user) {
		return storage.ErrUserNotInRoom
	}
	return s.repo.RemoveUserFromRoom(ctx, user, room)
}

// SetTopic updates the room topic. Owner only.
func (s *Service) SetTopic(ctx context.Context, caller *models.ChatUser, room *models.ChatRoom, topic string) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	room.Topic = topic
	return s.repo.SaveRoom(ctx, room)
}

// SetWelcome updates the room welcome message. Owner only.
func (s *Service) SetWelcome(ctx context.Context, caller *models.ChatUser, room *models.ChatRoom, welcome string) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	room.Welcome = welcome
	return s.repo.SaveRoom(ctx, room)
}

// AddOwner grants ownership of a room. Owner only; idempotent.
func (s *Service) AddOwner(ctx context.Context, caller, target *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	if room.HasOwner(target) {
		return nil
	}
	if err := s.repo.AddOwner(ctx, target, room); err != nil {
		return err
	}
	if room.Private && !target.IsAllowed(room) {
		return s.repo.AllowUser(ctx, target, room)
	}
	return nil
}

// RemoveOwner revokes ownership. Creator only.
func (s *Service) RemoveOwner(ctx context.Context, caller, target *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureCreator(caller, room); err != nil {
		return err
	}
	if !room.HasOwner(target) {
		return nil
	}
	return s.repo.RemoveOwner(ctx, target, room)
}

// LockRoom makes a room private. Everyone currently in the room keeps access
// through an ACL grant. Creator only.
func (s *Service) LockRoom(ctx context.Context, caller *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureCreator(caller, room); err != nil {
		return err
	}
	if room.Private {
		return nil
	}
	room.Private = true
	if err := s.repo.SaveRoom(ctx, room); err != nil {
		return err
	}
	if !caller.IsAllowed(room) {
		if err := s.repo.AllowUser(ctx, caller, room); err != nil {
			return err
		}
	}
	for _, member := range room.Users {
		if member.ID == caller.ID || member.IsAllowed(room) {
			continue
		}
		if err := s.repo.AllowUser(ctx, member, room); err != nil {
			return err
		}
	}
	return nil
}

// CloseRoom closes a room to new messages and joins. Owner only.
func (s *Service) CloseRoom(ctx context.Context, caller *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	room.Closed = true
	return s.repo.SaveRoom(ctx, room)
}

// OpenRoom reopens a closed room. Owner only.
func (s *Service) OpenRoom(ctx context.Context, caller *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	room.Closed = false
	return s.repo.SaveRoom(ctx, room)
}

// AllowUser grants a user access to a private room. Owner only.
func (s *Service) AllowUser(ctx context.Context, caller, target *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	if !room.Private {
		return fmt.Errorf("%s is not a private room", room.Name)
	}
	if target.IsAllowed(room) {
		return nil
	}
	return s.repo.AllowUser(ctx, target, room)
}

// UnallowUser revokes a user's access to a private room and, when they are
// currently a member, removes them from it. It reports whether the user was
// ejected.
func (s *Service) UnallowUser(ctx context.Context, caller, target *models.ChatUser, room *models.ChatRoom) (bool, error) {
	if err := s.ensureOwner(caller, room); err != nil {
		return false, err
	}
	if !room.Private {
		return false, fmt.Errorf("%s is not a private room", room.Name)
	}
	if err := s.repo.UnallowUser(ctx, target, room); err != nil {
		return false, err
	}
	if !room.HasUser(target) {
		return false, nil
	}
	return true, s.repo.RemoveUserFromRoom(ctx, target, room)
}

// KickUser ejects a member from a room. Owner only; owners cannot kick
// themselves, and only the creator or an admin can kick another owner.
func (s *Service) KickUser(ctx context.Context, caller, target *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	if target.ID == caller.ID {
		return fmt.Errorf("why would you want to kick yourself?")
	}
	if !room.HasUser(target) {
		return storage.ErrUserNotInRoom
	}
	if room.HasOwner(target) && room.CreatorID != caller.ID && !caller.IsAdmin {
		return ErrNotRoomCreator
	}
	return s.repo.RemoveUserFromRoom(ctx, target, room)
}

// ChangeUserName renames an account, keeping names unique.
func (s *Service) ChangeUserName(ctx context.Context, user *models.ChatUser, newName string) error {
	if !namePattern.MatchString(newName) {
		return ErrInvalidUserName
	}
	if strings.EqualFold(user.Name, newName) {
		user.Name = newName
		return s.repo.SaveUser(ctx, user)
	}
	if _, err := s.repo.GetUserByName(ctx, newName); err == nil {
		return ErrNameTaken
	} else if err != storage.ErrUserNotFound {
		return err
	}
	user.Name = newName
	return s.repo.SaveUser(ctx, user)
}

// EnsureInviteCode makes sure a private room has an invite code, generating
// one when missing. Owner only.
func (s *Service) EnsureInviteCode(ctx context.Context, caller *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	if room.InviteCode != "" {
		return nil
	}
	return s.resetInviteCode(ctx, room)
}

// ResetInviteCode replaces a private room's invite code. Owner only.
func (s *Service) ResetInviteCode(ctx context.Context, caller *models.ChatUser, room *models.ChatRoom) error {
	if err := s.ensureOwner(caller, room); err != nil {
		return err
	}
	return s.resetInviteCode(ctx, room)
}

func (s *Service) resetInviteCode(ctx context.Context, room *models.ChatRoom) error {
	room.InviteCode = fmt.Sprintf("%06d", rand.IntN(1000000))
	return s.repo.SaveRoom(ctx, room)
}

func (s *Service) ensureOwner(user *models.ChatUser, room *models.ChatRoom) error {
	if user.IsAdmin || room.HasOwner(user) {
		return nil
	}
	return ErrNotRoomOwner
}

func (s *Service) ensureCreator(user *models.ChatUser, room *models.ChatRoom) error {
	if user.IsAdmin || room.CreatorID == user.ID {
		return nil
	}
	return ErrNotRoomCreator
}
