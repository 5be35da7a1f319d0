package commands

import (
	"context"
	"fmt"
	"strings"

	"banter/internal/chat"
	"banter/internal/models"
	"banter/internal/storage"
	"banter/internal/transform"
)

// Command is one slash command. Handlers receive the room the caller typed
// in, which may be empty when sent from the lobby.
type Command struct {
	Name        string
	Usage       string
	Description string
	Handler     func(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error
}

// Env gives handlers access to the engine.
type Env struct {
	Hub      *chat.Hub
	Service  *chat.Service
	Repo     storage.Repository
	Notifier *chat.Notifier
	Text     *transform.TextTransform
}

func newEnv(hub *chat.Hub) *Env {
	return &Env{
		Hub:      hub,
		Service:  hub.Service(),
		Repo:     hub.Repo(),
		Notifier: hub.Notifier(),
		Text:     hub.Text(),
	}
}

// UnknownCommandError reports a slash word no command claims. It goes back
// to the caller only; the message is never treated as chat text.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%s is not a valid command", e.Command)
}

// ValidationError rejects a command before it runs: wrong arity, a malformed
// argument, a missing room. Like every command error it surfaces to the
// caller only.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (env *Env) user(ctx context.Context, caller *chat.Caller) (*models.ChatUser, error) {
	return env.Repo.VerifyUserID(ctx, caller.UserID)
}

// targetUser resolves a user argument, tolerating a leading @.
func (env *Env) targetUser(ctx context.Context, name string) (*models.ChatUser, error) {
	return env.Repo.VerifyUser(ctx, strings.TrimPrefix(name, "@"))
}

func requireArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return validationErrorf("usage: %s", usage)
	}
	return nil
}

func requireRoom(callingRoom string, args []string) (string, []string, error) {
	if len(args) > 0 {
		return args[0], args[1:], nil
	}
	if callingRoom == "" {
		return "", nil, validationErrorf("which room? use this command from a room or name one")
	}
	return callingRoom, args, nil
}

func roomNames(user *models.ChatUser) []string {
	names := make([]string, 0, len(user.Rooms))
	for _, room := range user.Rooms {
		names = append(names, room.Name)
	}
	return names
}
