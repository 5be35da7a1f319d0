package commands

import (
	"context"
	"fmt"
	"html"
	"strings"

	"banter/internal/chat"
	"banter/internal/models"
)

func roomArg(name string) string {
	return strings.TrimPrefix(name, "#")
}

func cmdJoin(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	if err := requireArgs(args, 1, "/join #room [invitecode]"); err != nil {
		return err
	}
	inviteCode := ""
	if len(args) > 1 {
		inviteCode = args[1]
	}
	return env.Hub.JoinRoom(ctx, caller, roomArg(args[0]), inviteCode)
}

func cmdCreate(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	if err := requireArgs(args, 1, "/create #room"); err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	room, err := env.Service.CreateRoom(ctx, user, roomArg(args[0]))
	if err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	return env.Hub.JoinRoom(ctx, caller, room.Name, "")
}

func cmdLeave(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	roomName, _, err := requireRoom(callingRoom, args)
	if err != nil {
		return err
	}
	return env.Hub.LeaveRoom(ctx, caller, roomArg(roomName))
}

func cmdTopic(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	if callingRoom == "" {
		return validationErrorf("use /topic from the room you want to change")
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	room, err := env.Repo.VerifyRoom(ctx, callingRoom, false)
	if err != nil {
		return err
	}

	topic := html.EscapeString(strings.Join(args, " "))
	if err := env.Service.SetTopic(ctx, user, room, topic); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.TopicChanged(room.Name, env.Text.ConvertURLsAndRoomLinks(ctx, room.Topic), user.Name)
	return nil
}

func cmdWelcome(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	if callingRoom == "" {
		return validationErrorf("use /welcome from the room you want to change")
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	room, err := env.Repo.VerifyRoom(ctx, callingRoom, false)
	if err != nil {
		return err
	}

	welcome := html.EscapeString(strings.Join(args, " "))
	if err := env.Service.SetWelcome(ctx, user, room, welcome); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.WelcomeChanged(room.Name, env.Text.ConvertURLsAndRoomLinks(ctx, room.Welcome))
	return nil
}

func cmdLock(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	roomName, _, err := requireRoom(callingRoom, args)
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	room, err := env.Repo.VerifyRoom(ctx, roomArg(roomName), false)
	if err != nil {
		return err
	}
	if err := env.Service.LockRoom(ctx, user, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.RoomLocked(room.Name)
	return nil
}

func cmdClose(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	roomName, _, err := requireRoom(callingRoom, args)
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	room, err := env.Repo.VerifyRoom(ctx, roomArg(roomName), false)
	if err != nil {
		return err
	}
	if err := env.Service.CloseRoom(ctx, user, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.RoomClosed(room.Name)
	return nil
}

func cmdOpen(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	roomName, _, err := requireRoom(callingRoom, args)
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	room, err := env.Repo.VerifyRoom(ctx, roomArg(roomName), false)
	if err != nil {
		return err
	}
	if err := env.Service.OpenRoom(ctx, user, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.RoomOpened(room.Name)
	return nil
}

func cmdInviteCode(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	roomName, _, err := requireRoom(callingRoom, args)
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	room, err := env.Repo.VerifyRoom(ctx, roomArg(roomName), false)
	if err != nil {
		return err
	}
	if !room.Private {
		return fmt.Errorf("only private rooms have invite codes")
	}
	if err := env.Service.EnsureInviteCode(ctx, user, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.Notify(caller.ConnectionID, fmt.Sprintf("invite code for %s: %s", room.Name, room.InviteCode))
	return nil
}

func cmdResetInviteCode(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	roomName, _, err := requireRoom(callingRoom, args)
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	room, err := env.Repo.VerifyRoom(ctx, roomArg(roomName), false)
	if err != nil {
		return err
	}
	if !room.Private {
		return fmt.Errorf("only private rooms have invite codes")
	}
	if err := env.Service.ResetInviteCode(ctx, user, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.Notify(caller.ConnectionID, fmt.Sprintf("new invite code for %s: %s", room.Name, room.InviteCode))
	return nil
}

// targetAndRoom resolves the "@user [#room]" argument shape shared by the
// moderation commands.
func targetAndRoom(ctx context.Context, env *Env, callingRoom string, args []string, usage string) (*models.ChatUser, *models.ChatRoom, error) {
	if err := requireArgs(args, 1, usage); err != nil {
		return nil, nil, err
	}
	target, err := env.targetUser(ctx, args[0])
	if err != nil {
		return nil, nil, err
	}
	roomName := callingRoom
	if len(args) > 1 {
		roomName = roomArg(args[1])
	}
	if roomName == "" {
		return nil, nil, validationErrorf("usage: %s", usage)
	}
	room, err := env.Repo.VerifyRoom(ctx, roomName, false)
	if err != nil {
		return nil, nil, err
	}
	return target, room, nil
}

func cmdAddOwner(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	target, room, err := targetAndRoom(ctx, env, callingRoom, args, "/addowner @user [#room]")
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	if err := env.Service.AddOwner(ctx, user, target, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.OwnerAdded(target, room.Name)
	return nil
}

func cmdRemoveOwner(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	target, room, err := targetAndRoom(ctx, env, callingRoom, args, "/removeowner @user [#room]")
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	if err := env.Service.RemoveOwner(ctx, user, target, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.OwnerRemoved(target, room.Name)
	return nil
}

func cmdAllow(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	target, room, err := targetAndRoom(ctx, env, callingRoom, args, "/allow @user [#room]")
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	if err := env.Service.AllowUser(ctx, user, target, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.UserAllowed(caller.ConnectionID, target.Name, room.Name)
	return nil
}

func cmdUnallow(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	target, room, err := targetAndRoom(ctx, env, callingRoom, args, "/unallow @user [#room]")
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	ejected, err := env.Service.UnallowUser(ctx, user, target, room)
	if err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.UserUnallowed(caller.ConnectionID, target.Name, room.Name)
	if ejected {
		env.Notifier.Kicked(target, room.Name, user.Name)
		env.Notifier.UserLeftRoom(target, room.Name)
		env.Hub.UnsubscribeUser(target, room.Name)
	}
	return nil
}

func cmdKick(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	target, room, err := targetAndRoom(ctx, env, callingRoom, args, "/kick @user [#room]")
	if err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	if err := env.Service.KickUser(ctx, user, target, room); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.Kicked(target, room.Name, user.Name)
	env.Notifier.UserLeftRoom(target, room.Name)
	env.Hub.UnsubscribeUser(target, room.Name)
	return nil
}
