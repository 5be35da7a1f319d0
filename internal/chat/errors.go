package chat

import "errors"

var (
	// ErrIdentityRequired rejects sessions whose account has no verified
	// identity when the server is configured to require one.
	ErrIdentityRequired = errors.New("an identity is required to chat")

	// ErrAccessDenied rejects joins to a private room the user is neither
	// allowed into nor invited to.
	ErrAccessDenied = errors.New("you do not have access to this room")

	// ErrInvalidInviteCode rejects a private-room join with a wrong code.
	ErrInvalidInviteCode = errors.New("invite code is incorrect")

	// ErrNotRoomOwner guards owner-only room operations.
	ErrNotRoomOwner = errors.New("you are not an owner of this room")

	// ErrNotRoomCreator guards creator-only room operations.
	ErrNotRoomCreator = errors.New("only the room creator can do that")

	// ErrInvalidRoomName rejects room names outside the allowed alphabet.
	ErrInvalidRoomName = errors.New("room names may only contain letters, numbers, dash and underscore, up to 30 characters")

	// ErrInvalidUserName rejects user names outside the allowed alphabet.
	ErrInvalidUserName = errors.New("names may only contain letters, numbers, dash and underscore, up to 30 characters")

	// ErrNameTaken rejects renaming to a name another account holds.
	ErrNameTaken = errors.New("that name is already taken")

	// ErrRoomExists rejects creating a room whose name is in use.
	ErrRoomExists = errors.New("a room with that name already exists")

	// ErrNotAdmin guards server-wide operations.
	ErrNotAdmin = errors.New("you are not an admin")
)
