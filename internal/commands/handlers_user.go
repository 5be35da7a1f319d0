package commands

import (
	"context"
	"crypto/md5"
	"fmt"
	"html"
	"strings"
	"time"

	"banter/internal/chat"
	"banter/internal/models"
)

const maxNoteLength = 200

func cmdNick(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	if err := requireArgs(args, 1, "/nick newname"); err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	oldName := user.Name
	if err := env.Service.ChangeUserName(ctx, user, args[0]); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.UserNameChanged(oldName, user, roomNames(user))
	return nil
}

func cmdNote(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	note := strings.Join(args, " ")
	if len(note) > maxNoteLength {
		return validationErrorf("notes are limited to %d characters", maxNoteLength)
	}
	user.Note = html.EscapeString(note)
	if err := env.Repo.SaveUser(ctx, user); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.NoteChanged(user, roomNames(user))
	return nil
}

func cmdAfk(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	note := strings.Join(args, " ")
	if len(note) > maxNoteLength {
		return validationErrorf("notes are limited to %d characters", maxNoteLength)
	}
	user.IsAfk = true
	user.AfkNote = html.EscapeString(note)
	if err := env.Repo.SaveUser(ctx, user); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.NoteChanged(user, roomNames(user))
	return nil
}

func cmdFlag(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		user.Flag = ""
	} else {
		code := strings.ToLower(args[0])
		if len(code) != 2 {
			return validationErrorf("flags are two-letter country codes, e.g. /flag nz")
		}
		user.Flag = code
	}
	if err := env.Repo.SaveUser(ctx, user); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.FlagChanged(user, roomNames(user))
	return nil
}

func cmdGravatar(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	if err := requireArgs(args, 1, "/gravatar email"); err != nil {
		return err
	}
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(args[0]))
	user.Hash = fmt.Sprintf("%x", md5.Sum([]byte(email)))
	if err := env.Repo.SaveUser(ctx, user); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.GravatarChanged(user, roomNames(user))
	return nil
}

func cmdNudge(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	user, err := env.user(ctx, caller)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if callingRoom == "" {
			return validationErrorf("usage: /nudge @user, or /nudge from a room")
		}
		if _, err := env.Repo.VerifyUserRoom(ctx, user, callingRoom); err != nil {
			return err
		}
		env.Notifier.RoomNudged(user, callingRoom)
		return nil
	}

	target, err := env.targetUser(ctx, args[0])
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if target.LastNudged != nil && now.Sub(*target.LastNudged) < time.Minute {
		return fmt.Errorf("%s was nudged just a moment ago", target.Name)
	}
	target.LastNudged = &now
	if err := env.Repo.SaveUser(ctx, target); err != nil {
		return err
	}
	if err := env.Repo.CommitChanges(ctx); err != nil {
		return err
	}
	env.Notifier.Nudged(user, target)
	return nil
}

func cmdInvite(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
	if err := requireArgs(args, 1, "/invite @user [#room]"); err != nil {
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
	roomName := callingRoom
	if len(args) > 1 {
		roomName = roomArg(args[1])
	}
	if roomName == "" {
		return validationErrorf("usage: /invite @user [#room]")
	}
	room, err := env.Repo.VerifyRoom(ctx, roomName, false)
	if err != nil {
		return err
	}
	env.Notifier.Invited(user, target, room.Name)
	return nil
}

func cmdWhere(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	if err := requireArgs(args, 1, "/where @user"); err != nil {
		return err
	}
	target, err := env.targetUser(ctx, args[0])
	if err != nil {
		return err
	}
	names := roomNames(target)
	if len(names) == 0 {
		env.Notifier.Notify(caller.ConnectionID, fmt.Sprintf("%s is not in any rooms", target.Name))
		return nil
	}
	env.Notifier.Notify(caller.ConnectionID, fmt.Sprintf("%s is in: %s", target.Name, strings.Join(names, ", ")))
	return nil
}

func cmdWho(ctx context.Context, env *Env, caller *chat.Caller, _ string, args []string) error {
	if len(args) > 0 {
		return env.Hub.GetUserInfo(ctx, caller, strings.TrimPrefix(args[0], "@"))
	}
	online, err := env.Repo.OnlineUsers(ctx)
	if err != nil {
		return err
	}
	views := make([]models.UserView, 0, len(online))
	for _, u := range online {
		views = append(views, models.NewUserView(u))
	}
	env.Notifier.SendUsers(caller.ConnectionID, views)
	return nil
}

func cmdList(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
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
	if room.Private && !room.HasUser(user) && !room.IsUserAllowed(user) {
		return chat.ErrAccessDenied
	}
	online, err := env.Repo.OnlineUsersInRoom(ctx, room)
	if err != nil {
		return err
	}
	views := make([]models.UserView, 0, len(online))
	for _, u := range online {
		views = append(views, models.NewUserView(u))
	}
	env.Notifier.SendUsers(caller.ConnectionID, views)
	return nil
}

func cmdLogout(ctx context.Context, env *Env, caller *chat.Caller, _ string, _ []string) error {
	return env.Hub.LogOut(ctx, caller)
}
