package dispatch

import "github.com/mattjoyce/farmctl/internal/command"

// SlowHint is shown while a slow verb is outstanding.
const SlowHint = "This could take a while."

// PendingText is the status text shown when cmd is sent, before its reply.
func PendingText(cmd command.Command) string {
	if v, ok := command.Lookup(cmd.Verb()); ok && v.Slow {
		return cmd.Label() + ": " + SlowHint
	}
	return cmd.Label() + ": sent"
}
