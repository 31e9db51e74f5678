package models

import "strings"

type Command string

const (
	CommandStart  Command = "START"
	CommandStop   Command = "STOP"
	CommandStatus Command = "STATUS"
)

var commandPrefixes = map[string]Command{
	"/start":  CommandStart,
	"/stop":   CommandStop,
	"/status": CommandStatus,
}

// IsCommandText: начинается ли текст с известной команды.
// В Command переводит ParseCommand.
func IsCommandText(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for prefix := range commandPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// ParseCommand переводит "/start", "/stop@my_bot" и т.п. в Command.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := text
	if i := strings.IndexAny(word, " \t\n"); i >= 0 {
		word = word[:i]
	}
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	cmd, ok := commandPrefixes[strings.ToLower(word)]
	return cmd, ok
}
