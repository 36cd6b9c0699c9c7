// Package command builds the single-line commands sent to the worker's
// control endpoint.
//
// Wire format: verb[ botId[ payload]]. Arguments are separated by a single
// space. A multi-line payload is joined into one argument with
// PayloadDelimiter; the join is one-way and replies are never split back.
package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	// ArgSeparator separates the verb and its positional arguments.
	ArgSeparator = " "

	// PayloadDelimiter joins payload lines into a single argument.
	PayloadDelimiter = ","
)

var (
	// ErrEmptyVerb is returned when a command has no verb.
	ErrEmptyVerb = errors.New("verb is required")

	// ErrInvalidArgument is returned when an argument contains a separator.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPayloadWithoutBot is returned when a payload is given but no bot is.
	ErrPayloadWithoutBot = errors.New("payload requires a bot")
)

// Command is an immutable request for the worker. Build it with New.
type Command struct {
	verb    string
	bot     string
	payload string
}

// New validates the arguments and returns a Command.
// Blank payload lines are dropped and the remaining lines are trimmed and
// joined with PayloadDelimiter.
func New(verb, bot string, payloadLines []string) (Command, error) {
	if verb == "" {
		return Command{}, ErrEmptyVerb
	}
	if err := checkToken("verb", verb); err != nil {
		return Command{}, err
	}
	if bot != "" {
		if err := checkToken("bot", bot); err != nil {
			return Command{}, err
		}
	}

	payload, err := JoinPayload(payloadLines)
	if err != nil {
		return Command{}, err
	}
	if payload != "" && bot == "" {
		return Command{}, ErrPayloadWithoutBot
	}

	return Command{verb: verb, bot: bot, payload: payload}, nil
}

// JoinPayload trims each line, drops blank ones and joins the rest with
// PayloadDelimiter. A line containing whitespace or the delimiter is rejected.
func JoinPayload(lines []string) (string, error) {
	parts := make([]string, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, PayloadDelimiter) {
			return "", fmt.Errorf("payload line %d contains %q: %w", i+1, PayloadDelimiter, ErrInvalidArgument)
		}
		if err := checkToken(fmt.Sprintf("payload line %d", i+1), line); err != nil {
			return "", err
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, PayloadDelimiter), nil
}

func checkToken(field, value string) error {
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%s %q contains whitespace: %w", field, value, ErrInvalidArgument)
	}
	return nil
}

// Verb returns the command verb.
func (c Command) Verb() string { return c.verb }

// Bot returns the bot identifier, or "" for global commands.
func (c Command) Bot() string { return c.bot }

// Payload returns the joined payload argument, or "".
func (c Command) Payload() string { return c.payload }

// String serializes the command into its wire line.
func (c Command) String() string {
	parts := []string{c.verb}
	if c.bot != "" {
		parts = append(parts, c.bot)
	}
	if c.payload != "" {
		parts = append(parts, c.payload)
	}
	return strings.Join(parts, ArgSeparator)
}

// Label renders the short form used in result displays, e.g. "!farm <alice>".
func (c Command) Label() string {
	if c.bot == "" {
		return "!" + c.verb
	}
	return fmt.Sprintf("!%s <%s>", c.verb, c.bot)
}
