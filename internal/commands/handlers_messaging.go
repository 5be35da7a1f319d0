package commands

import (
	"context"
	"fmt"
	"html"
	"strings"

	"banter/internal/chat"
)

func cmdMe(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	if callingRoom == "" {
		return validationErrorf("use /me from a room")
	}
	if err := requireArgs(args, 1, "/me does something"); err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	if _, err := env.Repo.VerifyUserRoom(ctx, user, callingRoom); err != nil {
		return err
	}
	action := html.EscapeString(strings.Join(args, " "))
	env.Notifier.PostNotification(callingRoom, fmt.Sprintf("*%s %s*", user.Name, action))
	return nil
}

func cmdMsg(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	if err := requireArgs(args, 2, "/msg @user message"); err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	target, err := env.targetUser(ctx, args[0])
	if err != nil {
		return err
	}
	if target.ID == user.ID {
		return validationErrorf("you cannot message yourself")
	}
	content := html.EscapeString(strings.Join(args[1:], " "))
	env.Notifier.PrivateMessage(user, target, content)
	return nil
}

func cmdBroadcast(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	if err := requireArgs(args, 1, "/broadcast message"); err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	if !user.IsAdmin {
		return chat.ErrNotAdmin
	}
	env.Notifier.Broadcast(html.EscapeString(strings.Join(args, " ")))
	return nil
}
