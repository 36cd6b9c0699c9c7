package command

import "errors"

// ErrBotRequired is returned when a bot-scoped verb is built without a bot.
var ErrBotRequired = errors.New("bot is required")

// Scope says which arguments a verb takes.
type Scope int

const (
	// ScopeGlobal verbs take no arguments.
	ScopeGlobal Scope = iota
	// ScopeBot verbs take the selected bot.
	ScopeBot
	// ScopePayload verbs take the selected bot and the payload input.
	ScopePayload
)

// Verb describes one worker command exposed by the controller.
type Verb struct {
	Name  string
	Key   string
	Help  string
	Scope Scope
	// Slow verbs show a hint while they run.
	Slow bool
}

// Verbs lists the commands offered in the UI, in display order.
var Verbs = []Verb{
	{Name: "farm", Key: "f", Help: "farm", Scope: ScopeBot},
	{Name: "loot", Key: "l", Help: "loot", Scope: ScopeBot},
	{Name: "lootall", Key: "L", Help: "loot all", Scope: ScopeGlobal},
	{Name: "redeem", Key: "R", Help: "redeem keys", Scope: ScopePayload},
	{Name: "addlicense", Key: "A", Help: "add license", Scope: ScopePayload},
	{Name: "owns", Key: "o", Help: "owns", Scope: ScopePayload},
	{Name: "play", Key: "p", Help: "play", Scope: ScopePayload},
	{Name: "leave", Key: "v", Help: "leave", Scope: ScopeBot},
	{Name: "rejoinchat", Key: "j", Help: "rejoin", Scope: ScopeBot},
	{Name: "start", Key: "S", Help: "start bot", Scope: ScopeBot},
	{Name: "stop", Key: "X", Help: "stop bot", Scope: ScopeBot},
	{Name: "pause", Key: "P", Help: "pause bot", Scope: ScopeBot},
	{Name: "status", Key: "t", Help: "status", Scope: ScopeBot},
	{Name: "statusall", Key: "T", Help: "status all", Scope: ScopeGlobal},
	{Name: "help", Key: "H", Help: "worker help", Scope: ScopeGlobal},
	{Name: "update", Key: "U", Help: "update worker", Scope: ScopeGlobal},
	{Name: "version", Key: "V", Help: "worker version", Scope: ScopeGlobal},
	{Name: "api", Key: "a", Help: "api", Scope: ScopeGlobal},
	{Name: "2fa", Key: "2", Help: "2fa code", Scope: ScopeBot},
	{Name: "2faoff", Key: "3", Help: "2fa off", Scope: ScopeBot},
	{Name: "2faok", Key: "4", Help: "2fa accept", Scope: ScopeBot, Slow: true},
	{Name: "2fano", Key: "5", Help: "2fa deny", Scope: ScopeBot, Slow: true},
}

// Lookup returns the verb with the given name.
func Lookup(name string) (Verb, bool) {
	for _, v := range Verbs {
		if v.Name == name {
			return v, true
		}
	}
	return Verb{}, false
}

// Build creates the Command for v using the selected bot and payload lines,
// ignoring arguments the verb's scope does not take.
func (v Verb) Build(bot string, payloadLines []string) (Command, error) {
	if v.Scope != ScopeGlobal && bot == "" {
		return Command{}, ErrBotRequired
	}
	switch v.Scope {
	case ScopeGlobal:
		return New(v.Name, "", nil)
	case ScopeBot:
		return New(v.Name, bot, nil)
	default:
		return New(v.Name, bot, payloadLines)
	}
}
