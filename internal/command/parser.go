// Package command parses in-band administrative commands such as "!authorize".
package command

import "strings"

const DefaultPrefix = "!"

type Type string

const (
	TypeAuthorize   Type = "authorize"
	TypeDeauthorize Type = "deauthorize"
	TypeStatus      Type = "status"
	TypeRelearn     Type = "relearn"
	TypeHelp        Type = "help"
	TypeUnknown     Type = "unknown"
)

var known = map[string]Type{
	"authorize":   TypeAuthorize,
	"deauthorize": TypeDeauthorize,
	"status":      TypeStatus,
	"relearn":     TypeRelearn,
	"help":        TypeHelp,
}

// Command is a parsed "<prefix><name> [args...]" line.
type Command struct {
	Type Type
	Name string
	Args []string
}

// Target returns the first argument, or fallback when there is none.
func (c Command) Target(fallback string) string {
	if len(c.Args) > 0 {
		return c.Args[0]
	}
	return fallback
}

type Parser struct {
	prefix string
}

func NewParser(prefix string) *Parser {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Parser{prefix: prefix}
}

// IsCommand reports whether text starts with the command prefix.
func (p *Parser) IsCommand(text string) bool {
	return strings.HasPrefix(text, p.prefix)
}

func (p *Parser) Parse(text string) Command {
	body := strings.TrimPrefix(strings.TrimSpace(text), p.prefix)
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return Command{Type: TypeUnknown}
	}

	name := strings.ToLower(fields[0])
	cmd := Command{Type: TypeUnknown, Name: name, Args: fields[1:]}
	if t, ok := known[name]; ok {
		cmd.Type = t
	}
	return cmd
}
