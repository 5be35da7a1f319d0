package storage

import "errors"

var (
	// ErrUserNotFound indicates the user id or name resolved to nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoomNotFound indicates no room exists with the given name.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomClosed indicates the room exists but is closed to new messages.
	ErrRoomClosed = errors.New("room is closed")
	// ErrUserNotInRoom indicates the user is not a member of the room.
	ErrUserNotInRoom = errors.New("user is not in the room")
	// ErrMessageNotFound indicates no message exists with the given id.
	ErrMessageNotFound = errors.New("message not found")
)
