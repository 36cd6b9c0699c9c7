// Package simworker is a stand-in bot-farm worker. It keeps a small set of
// simulated bots in memory and answers the same text commands a real worker
// does, so the controller can be exercised without one.
package simworker

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bot states reported in status lines.
const (
	StateIdle    = "idle"
	StateFarming = "farming"
	StatePaused  = "paused"
	StateStopped = "not running"
)

var botVerbs = []string{
	"status", "farm", "rejoinchat", "start", "stop", "pause", "leave", "loot",
	"redeem", "addlicense", "owns", "play", "2fa", "2faoff", "2faok", "2fano",
}

// Farm holds the simulated bots.
type Farm struct {
	mu     sync.Mutex
	order  []string
	states map[string]string
	owned  map[string][]string

	// SlowDelay is how long 2FA confirmations take.
	SlowDelay time.Duration
	Version   string
}

// NewFarm creates a farm with the given bots, all idle.
func NewFarm(bots ...string) *Farm {
	f := &Farm{
		states:    make(map[string]string, len(bots)),
		owned:     make(map[string][]string, len(bots)),
		SlowDelay: 3 * time.Second,
		Version:   "0.0.0-sim",
	}
	for _, id := range bots {
		if _, ok := f.states[id]; ok {
			continue
		}
		f.order = append(f.order, id)
		f.states[id] = StateIdle
	}
	return f
}

// StatusLines returns one "Bot <id> is <state>." line per bot.
func (f *Farm) StatusLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, 0, len(f.order))
	for _, id := range f.order {
		lines = append(lines, statusLine(id, f.states[id]))
	}
	return lines
}

func statusLine(id, state string) string {
	return fmt.Sprintf("<%s> Bot %s is %s.", id, id, state)
}

// Execute runs one command line and returns the worker's reply text.
// The bool is false for commands the worker rejects.
func (f *Farm) Execute(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "Command is empty!", false
	}
	verb := strings.ToLower(strings.TrimPrefix(fields[0], "!"))
	args := fields[1:]

	switch verb {
	case "statusall":
		return strings.Join(f.StatusLines(), "\n"), true
	case "lootall":
		return f.eachBot(func(id string) string { return fmt.Sprintf("<%s> Done!", id) }), true
	case "help":
		return "Available commands: farm, loot, lootall, redeem, addlicense, owns, play, leave, rejoinchat, start, stop, pause, status, statusall, 2fa, 2faoff, 2faok, 2fano, update, version", true
	case "version":
		return "farmsim V" + f.Version, true
	case "update":
		return "You're using the latest version.", true
	case "api":
		return "IPC is enabled.", true
	}

	if !slices.Contains(botVerbs, verb) {
		return fmt.Sprintf("Unknown command: %s", verb), false
	}
	if len(args) == 0 {
		return fmt.Sprintf("Command %s requires a bot.", verb), false
	}
	id := args[0]
	payload := ""
	if len(args) > 1 {
		payload = args[1]
	}

	f.mu.Lock()
	state, ok := f.states[id]
	f.mu.Unlock()
	if !ok {
		return fmt.Sprintf("<%s> Couldn't find any bot named %s!", id, id), false
	}

	switch verb {
	case "status":
		return statusLine(id, state), true
	case "farm", "rejoinchat":
		f.setState(id, StateFarming)
		return fmt.Sprintf("<%s> Done!", id), true
	case "start":
		if state != StateStopped {
			return fmt.Sprintf("<%s> This bot instance is already running!", id), true
		}
		f.setState(id, StateIdle)
		return fmt.Sprintf("<%s> Done!", id), true
	case "stop":
		f.setState(id, StateStopped)
		return fmt.Sprintf("<%s> Done!", id), true
	case "pause":
		f.setState(id, StatePaused)
		return fmt.Sprintf("<%s> Automatic farming module has been paused!", id), true
	case "leave":
		f.setState(id, StateIdle)
		return fmt.Sprintf("<%s> Done!", id), true
	case "loot":
		return fmt.Sprintf("<%s> Trade offer sent successfully!", id), true
	case "redeem":
		return f.perItem(id, payload, "Status: OK"), true
	case "addlicense":
		f.own(id, payload)
		return f.perItem(id, payload, "Status: OK | Items: license"), true
	case "owns":
		return f.owns(id, payload), true
	case "play":
		return fmt.Sprintf("<%s> Playing selected games: %s", id, payload), true
	case "2fa":
		return fmt.Sprintf("<%s> 2FA token: %s", id, strings.ToUpper(uuid.NewString()[:5])), true
	case "2faoff":
		return fmt.Sprintf("<%s> Done!", id), true
	case "2faok", "2fano":
		time.Sleep(f.SlowDelay)
		return fmt.Sprintf("<%s> Success! 0 confirmations handled.", id), true
	default:
		return fmt.Sprintf("<%s> Done!", id), true
	}
}

func (f *Farm) setState(id, state string) {
	f.mu.Lock()
	f.states[id] = state
	f.mu.Unlock()
}

func (f *Farm) eachBot(line func(id string) string) string {
	f.mu.Lock()
	ids := slices.Clone(f.order)
	f.mu.Unlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, line(id))
	}
	return strings.Join(out, "\n")
}

func (f *Farm) perItem(id, payload, result string) string {
	if payload == "" {
		return fmt.Sprintf("<%s> Nothing to do.", id)
	}
	items := strings.Split(payload, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("<%s> Key: %s | %s", id, item, result))
	}
	return strings.Join(out, "\n")
}

func (f *Farm) own(id, payload string) {
	if payload == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range strings.Split(payload, ",") {
		if !slices.Contains(f.owned[id], item) {
			f.owned[id] = append(f.owned[id], item)
		}
	}
}

func (f *Farm) owns(id, payload string) string {
	if payload == "" {
		return fmt.Sprintf("<%s> Nothing to do.", id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := strings.Split(payload, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		verdict := "Not owned yet"
		if slices.Contains(f.owned[id], item) {
			verdict = "Owned already"
		}
		out = append(out, fmt.Sprintf("<%s> %s: %s", id, verdict, item))
	}
	return strings.Join(out, "\n")
}
