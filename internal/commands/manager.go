package commands

import (
	"context"
	"strings"

	"banter/internal/chat"
)

// Manager parses and dispatches slash commands. It implements
// chat.CommandDispatcher.
type Manager struct {
	env     *Env
	byName  map[string]*Command
	ordered []*Command
}

// NewManager builds the command table over the hub.
func NewManager(hub *chat.Hub) *Manager {
	m := &Manager{
		env:    newEnv(hub),
		byName: make(map[string]*Command),
	}

	m.register(&Command{
		Name:        "help",
		Usage:       "/help",
		Description: "Shows this list",
		Handler: func(ctx context.Context, env *Env, caller *chat.Caller, callingRoom string, args []string) error {
			return m.help(caller)
		},
	})

	for _, cmd := range []*Command{
		{Name: "join", Usage: "/join #room [invitecode]", Description: "Joins a room, with a code for private ones", Handler: cmdJoin},
		{Name: "create", Usage: "/create #room", Description: "Creates a room and joins it", Handler: cmdCreate},
		{Name: "leave", Usage: "/leave [#room]", Description: "Leaves the current or named room", Handler: cmdLeave},
		{Name: "me", Usage: "/me does something", Description: "Sends an action message", Handler: cmdMe},
		{Name: "msg", Usage: "/msg @user message", Description: "Sends a private message", Handler: cmdMsg},
		{Name: "who", Usage: "/who [@user]", Description: "Lists online users, or shows one", Handler: cmdWho},
		{Name: "where", Usage: "/where @user", Description: "Shows which rooms a user is in", Handler: cmdWhere},
		{Name: "list", Usage: "/list [#room]", Description: "Lists who is in a room", Handler: cmdList},
		{Name: "nick", Usage: "/nick newname", Description: "Changes your name", Handler: cmdNick},
		{Name: "note", Usage: "/note your note", Description: "Sets a note shown next to your name", Handler: cmdNote},
		{Name: "afk", Usage: "/afk [reason]", Description: "Marks you away from keyboard", Handler: cmdAfk},
		{Name: "flag", Usage: "/flag [countrycode]", Description: "Sets or clears your country flag", Handler: cmdFlag},
		{Name: "gravatar", Usage: "/gravatar email", Description: "Sets your avatar from a gravatar email", Handler: cmdGravatar},
		{Name: "nudge", Usage: "/nudge [@user]", Description: "Nudges a user or the whole room", Handler: cmdNudge},
		{Name: "invite", Usage: "/invite @user [#room]", Description: "Invites a user into a room", Handler: cmdInvite},
		{Name: "topic", Usage: "/topic [text]", Description: "Sets or clears the room topic (owners)", Handler: cmdTopic},
		{Name: "welcome", Usage: "/welcome [text]", Description: "Sets or clears the room welcome (owners)", Handler: cmdWelcome},
		{Name: "addowner", Usage: "/addowner @user [#room]", Description: "Grants room ownership (owners)", Handler: cmdAddOwner},
		{Name: "removeowner", Usage: "/removeowner @user [#room]", Description: "Revokes room ownership (creator)", Handler: cmdRemoveOwner},
		{Name: "lock", Usage: "/lock [#room]", Description: "Makes a room private (creator)", Handler: cmdLock},
		{Name: "close", Usage: "/close [#room]", Description: "Closes a room to new messages (owners)", Handler: cmdClose},
		{Name: "open", Usage: "/open [#room]", Description: "Reopens a closed room (owners)", Handler: cmdOpen},
		{Name: "allow", Usage: "/allow @user [#room]", Description: "Grants access to a private room (owners)", Handler: cmdAllow},
		{Name: "unallow", Usage: "/unallow @user [#room]", Description: "Revokes access to a private room (owners)", Handler: cmdUnallow},
		{Name: "invitecode", Usage: "/invitecode [#room]", Description: "Shows the room invite code (owners)", Handler: cmdInviteCode},
		{Name: "resetinvitecode", Usage: "/resetinvitecode [#room]", Description: "Replaces the room invite code (owners)", Handler: cmdResetInviteCode},
		{Name: "kick", Usage: "/kick @user [#room]", Description: "Ejects a user from a room (owners)", Handler: cmdKick},
		{Name: "broadcast", Usage: "/broadcast message", Description: "Sends a notice to everyone (admins)", Handler: cmdBroadcast},
		{Name: "logout", Usage: "/logout", Description: "Ends your session everywhere", Handler: cmdLogout},
	} {
		m.register(cmd)
	}

	return m
}

func (m *Manager) register(cmd *Command) {
	m.byName[cmd.Name] = cmd
	m.ordered = append(m.ordered, cmd)
}

// Commands returns the registered commands in registration order.
func (m *Manager) Commands() []*Command {
	return m.ordered
}

// TryHandleCommand dispatches a message starting with a slash. A doubled
// slash escapes a literal message. Unknown commands are an error to the
// caller, never chat text.
func (m *Manager) TryHandleCommand(ctx context.Context, caller *chat.Caller, roomName, message string) (bool, error) {
	if !strings.HasPrefix(message, "/") || strings.HasPrefix(message, "//") {
		return false, nil
	}

	parts := strings.Fields(message[1:])
	if len(parts) == 0 {
		return false, nil
	}

	name := strings.ToLower(parts[0])
	cmd, ok := m.byName[name]
	if !ok {
		return true, &UnknownCommandError{Command: name}
	}
	return true, cmd.Handler(ctx, m.env, caller, roomName, parts[1:])
}

type commandHelp struct {
	Name        string `json:"name"`
	Usage       string `json:"usage"`
	Description string `json:"description"`
}

func (m *Manager) help(caller *chat.Caller) error {
	list := make([]commandHelp, 0, len(m.ordered))
	for _, cmd := range m.ordered {
		list = append(list, commandHelp{Name: cmd.Name, Usage: cmd.Usage, Description: cmd.Description})
	}
	m.env.Notifier.SendCommands(caller.ConnectionID, list)
	return nil
}
