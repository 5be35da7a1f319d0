package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"banter/internal/models"
)

// Repository defines the persistence operations the chat engine needs.
//
// Mutating methods write through immediately and also update the association
// slices on the passed models, so in-memory checks within a unit of work see
// the change. CommitChanges marks the commit point of a unit of work: callers
// invoke it after mutating an entity and before broadcasting its effect.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, user *models.ChatUser) error
	GetUserByID(ctx context.Context, id uint) (*models.ChatUser, error)
	GetUserByName(ctx context.Context, name string) (*models.ChatUser, error)
	GetUserByClientID(ctx context.Context, connectionID string) (*models.ChatUser, error)
	// VerifyUserID is GetUserByID that fails loudly; use it on paths where a
	// missing user is a protocol violation rather than an expected miss.
	VerifyUserID(ctx context.Context, id uint) (*models.ChatUser, error)
	VerifyUser(ctx context.Context, name string) (*models.ChatUser, error)
	SaveUser(ctx context.Context, user *models.ChatUser) error
	OnlineUsers(ctx context.Context) ([]*models.ChatUser, error)

	// Rooms
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	GetRoomByName(ctx context.Context, name string) (*models.ChatRoom, error)
	VerifyRoom(ctx context.Context, name string, mustBeOpen bool) (*models.ChatRoom, error)
	VerifyUserRoom(ctx context.Context, user *models.ChatUser, roomName string) (*models.ChatRoom, error)
	SaveRoom(ctx context.Context, room *models.ChatRoom) error
	Rooms(ctx context.Context) ([]*models.ChatRoom, error)
	GetAllowedRooms(ctx context.Context, user *models.ChatUser) ([]*models.ChatRoom, error)
	OnlineUsersInRoom(ctx context.Context, room *models.ChatRoom) ([]*models.ChatUser, error)

	// Membership, ownership and ACL grants
	AddUserToRoom(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error
	RemoveUserFromRoom(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error
	AddOwner(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error
	RemoveOwner(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error
	AllowUser(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error
	UnallowUser(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error

	// Connections
	AddClient(ctx context.Context, client *models.ChatClient) error
	RemoveClient(ctx context.Context, connectionID string) error
	RemoveAllClients(ctx context.Context) error

	// Messages
	AddMessage(ctx context.Context, message *models.ChatMessage) error
	SaveMessage(ctx context.Context, message *models.ChatMessage) error
	GetMessageByID(ctx context.Context, messageID string) (*models.ChatMessage, error)
	// MessagesByRoom and PreviousMessages return newest-first windows; callers
	// re-order into chronological order before rendering.
	MessagesByRoom(ctx context.Context, room *models.ChatRoom, limit int) ([]*models.ChatMessage, error)
	PreviousMessages(ctx context.Context, beforeMessageID string, limit int) ([]*models.ChatMessage, error)

	CommitChanges(ctx context.Context) error
}

// gormRepository implements Repository using GORM.
type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based Repository.
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) preloadUser(db *gorm.DB) *gorm.DB {
	return db.Preload("ConnectedClients").
		Preload("Rooms").
		Preload("OwnedRooms").
		Preload("AllowedRooms")
}

func (r *gormRepository) preloadRoom(db *gorm.DB) *gorm.DB {
	return db.Preload("Users").
		Preload("Users.ConnectedClients").
		Preload("Owners").
		Preload("AllowedUsers")
}

func (r *gormRepository) CreateUser(ctx context.Context, user *models.ChatUser) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *gormRepository) GetUserByID(ctx context.Context, id uint) (*models.ChatUser, error) {
	var user models.ChatUser
	err := r.preloadUser(r.db.WithContext(ctx)).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByName(ctx context.Context, name string) (*models.ChatUser, error) {
	var user models.ChatUser
	err := r.preloadUser(r.db.WithContext(ctx)).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByClientID(ctx context.Context, connectionID string) (*models.ChatUser, error) {
	var client models.ChatClient
	err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return r.GetUserByID(ctx, client.UserID)
}

func (r *gormRepository) VerifyUserID(ctx context.Context, id uint) (*models.ChatUser, error) {
	user, err := r.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("verify user %d: %w", id, err)
	}
	return user, nil
}

func (r *gormRepository) VerifyUser(ctx context.Context, name string) (*models.ChatUser, error) {
	user, err := r.GetUserByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("verify user %q: %w", name, err)
	}
	return user, nil
}

func (r *gormRepository) SaveUser(ctx context.Context, user *models.ChatUser) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Omit("Rooms", "OwnedRooms", "AllowedRooms", "ConnectedClients").Save(user).Error
}

func (r *gormRepository) OnlineUsers(ctx context.Context) ([]*models.ChatUser, error) {
	var users []*models.ChatUser
	err := r.preloadUser(r.db.WithContext(ctx)).
		Where("status <> ?", models.StatusOffline).
		Find(&users).Error
	return users, err
}

func (r *gormRepository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	return r.db.WithContext(ctx).Omit("Users", "Owners", "AllowedUsers").Create(room).Error
}

func (r *gormRepository) GetRoomByName(ctx context.Context, name string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.preloadRoom(r.db.WithContext(ctx)).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *gormRepository) VerifyRoom(ctx context.Context, name string, mustBeOpen bool) (*models.ChatRoom, error) {
	room, err := r.GetRoomByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if mustBeOpen && room.Closed {
		return nil, ErrRoomClosed
	}
	return room, nil
}

func (r *gormRepository) VerifyUserRoom(ctx context.Context, user *models.ChatUser, roomName string) (*models.ChatRoom, error) {
	room, err := r.GetRoomByName(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if !room.HasUser(user) {
		return nil, ErrUserNotInRoom
	}
	return room, nil
}

func (r *gormRepository) SaveRoom(ctx context.Context, room *models.ChatRoom) error {
	if room.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Omit("Users", "Owners", "AllowedUsers", "Creator").Save(room).Error
}

func (r *gormRepository) Rooms(ctx context.Context) ([]*models.ChatRoom, error) {
	var rooms []*models.ChatRoom
	err := r.db.WithContext(ctx).Find(&rooms).Error
	return rooms, err
}

func (r *gormRepository) GetAllowedRooms(ctx context.Context, user *models.ChatUser) ([]*models.ChatRoom, error) {
	var rooms []*models.ChatRoom
	err := r.preloadRoom(r.db.WithContext(ctx)).Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	allowed := rooms[:0]
	for _, room := range rooms {
		if room.IsUserAllowed(user) {
			allowed = append(allowed, room)
		}
	}
	return allowed, nil
}

func (r *gormRepository) OnlineUsersInRoom(ctx context.Context, room *models.ChatRoom) ([]*models.ChatUser, error) {
	var users []*models.ChatUser
	err := r.db.WithContext(ctx).
		Joins("JOIN room_users ON room_users.chat_user_id = chat_users.id").
		Where("room_users.chat_room_id = ? AND chat_users.status <> ?", room.ID, models.StatusOffline).
		Find(&users).Error
	return users, err
}

func (r *gormRepository) AddUserToRoom(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	if err := r.db.WithContext(ctx).Model(room).Association("Users").Append(&models.ChatUser{BaseModel: models.BaseModel{ID: user.ID}}); err != nil {
		return err
	}
	room.Users = append(room.Users, user)
	user.Rooms = append(user.Rooms, room)
	return nil
}

func (r *gormRepository) RemoveUserFromRoom(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	if err := r.db.WithContext(ctx).Model(room).Association("Users").Delete(&models.ChatUser{BaseModel: models.BaseModel{ID: user.ID}}); err != nil {
		return err
	}
	room.Users = removeUser(room.Users, user.ID)
	user.Rooms = removeRoom(user.Rooms, room.ID)
	return nil
}

func (r *gormRepository) AddOwner(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	if err := r.db.WithContext(ctx).Model(room).Association("Owners").Append(&models.ChatUser{BaseModel: models.BaseModel{ID: user.ID}}); err != nil {
		return err
	}
	room.Owners = append(room.Owners, user)
	user.OwnedRooms = append(user.OwnedRooms, room)
	return nil
}

func (r *gormRepository) RemoveOwner(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	if err := r.db.WithContext(ctx).Model(room).Association("Owners").Delete(&models.ChatUser{BaseModel: models.BaseModel{ID: user.ID}}); err != nil {
		return err
	}
	room.Owners = removeUser(room.Owners, user.ID)
	user.OwnedRooms = removeRoom(user.OwnedRooms, room.ID)
	return nil
}

func (r *gormRepository) AllowUser(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	if err := r.db.WithContext(ctx).Model(room).Association("AllowedUsers").Append(&models.ChatUser{BaseModel: models.BaseModel{ID: user.ID}}); err != nil {
		return err
	}
	room.AllowedUsers = append(room.AllowedUsers, user)
	user.AllowedRooms = append(user.AllowedRooms, room)
	return nil
}

func (r *gormRepository) UnallowUser(ctx context.Context, user *models.ChatUser, room *models.ChatRoom) error {
	if err := r.db.WithContext(ctx).Model(room).Association("AllowedUsers").Delete(&models.ChatUser{BaseModel: models.BaseModel{ID: user.ID}}); err != nil {
		return err
	}
	room.AllowedUsers = removeUser(room.AllowedUsers, user.ID)
	user.AllowedRooms = removeRoom(user.AllowedRooms, room.ID)
	return nil
}

func (r *gormRepository) AddClient(ctx context.Context, client *models.ChatClient) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *gormRepository) RemoveClient(ctx context.Context, connectionID string) error {
	return r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Delete(&models.ChatClient{}).Error
}

// RemoveAllClients clears all connection records; run at startup so a crashed
// process does not leave phantom presence behind.
func (r *gormRepository) RemoveAllClients(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.ChatClient{}).Error
}

func (r *gormRepository) AddMessage(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Omit("User", "Room").Create(message).Error
}

func (r *gormRepository) SaveMessage(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Omit("User", "Room").Save(message).Error
}

func (r *gormRepository) GetMessageByID(ctx context.Context, messageID string) (*models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("message_id = ?", messageID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (r *gormRepository) MessagesByRoom(ctx context.Context, room *models.ChatRoom, limit int) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ?", room.ID).
		Order("\"when\" DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *gormRepository) PreviousMessages(ctx context.Context, beforeMessageID string, limit int) ([]*models.ChatMessage, error) {
	anchor, err := r.GetMessageByID(ctx, beforeMessageID)
	if err != nil {
		return nil, err
	}
	var messages []*models.ChatMessage
	err = r.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ? AND \"when\" < ?", anchor.RoomID, anchor.When).
		Order("\"when\" DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// CommitChanges marks the commit point of a unit of work. Mutations above
// write through as they happen, so there is nothing buffered to flush; the
// method exists so call sites encode the commit-before-broadcast discipline
// and alternative implementations can batch.
func (r *gormRepository) CommitChanges(ctx context.Context) error {
	return nil
}

func removeUser(users []*models.ChatUser, id uint) []*models.ChatUser {
	out := users[:0]
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

func removeRoom(rooms []*models.ChatRoom, id uint) []*models.ChatRoom {
	out := rooms[:0]
	for _, r := range rooms {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
