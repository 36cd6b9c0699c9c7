package roster

import (
	"context"
	"fmt"

	"github.com/mattjoyce/farmctl/internal/command"
	"github.com/mattjoyce/farmctl/internal/transport"
)

// Fetch sends the global status verb and extracts the roster from the reply.
// The raw reply is returned alongside so callers can display it.
func Fetch(ctx context.Context, client transport.Client, statusVerb string) ([]string, string, error) {
	cmd, err := command.New(statusVerb, "", nil)
	if err != nil {
		return nil, "", fmt.Errorf("status verb %q: %w", statusVerb, err)
	}
	reply, err := client.Send(ctx, cmd.String())
	if err != nil {
		return nil, "", fmt.Errorf("fetch roster: %w", err)
	}
	return ExtractBotIDs(reply), reply, nil
}
