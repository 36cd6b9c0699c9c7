// Package roster derives the list of worker-managed bots from a status reply.
package roster

import "regexp"

// botPattern matches one "Bot <id> is" occurrence; the id is the run of
// non-whitespace characters after "Bot ".
var botPattern = regexp.MustCompile(`Bot (\S+) is`)

// ExtractBotIDs returns every bot identifier found in statusText, in the
// order the matches occur. Duplicates are kept and no normalization is applied.
// An empty, non-nil slice is returned when nothing matches.
func ExtractBotIDs(statusText string) []string {
	matches := botPattern.FindAllStringSubmatch(statusText, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}
