// Package permissions maps administrative command names to the minimum
// permission level allowed to run them.
package permissions

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pdcc/internal/common"
)

// Command is a resolved command line.
type Command struct {
	Name  string
	Args  []string
	Level int
}

type Gate struct {
	levels map[string]int
}

// NewGate copies levels; names are matched case-insensitively.
func NewGate(levels map[string]int) *Gate {
	g := &Gate{levels: make(map[string]int, len(levels))}
	for name, level := range levels {
		g.levels[normalize(name)] = level
	}
	return g
}

// Resolve splits a command line such as "/ban list" or "kick bob" and finds
// its table entry. A two-token name is preferred over a one-token name.
func (g *Gate) Resolve(text string) (*Command, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(text), "/"))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty command", common.ErrorUnknownCommand)
	}

	if len(fields) >= 2 {
		name := normalize(fields[0] + " " + fields[1])
		if level, ok := g.levels[name]; ok {
			return &Command{Name: name, Args: fields[2:], Level: level}, nil
		}
	}

	name := normalize(fields[0])
	level, ok := g.levels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrorUnknownCommand, fields[0])
	}
	return &Command{Name: name, Args: fields[1:], Level: level}, nil
}

// Check fails with common.ErrorPermissionDenied when level is below cmd's.
func (g *Gate) Check(level int, cmd *Command) error {
	if level < cmd.Level {
		return fmt.Errorf("%w: %s requires level %d", common.ErrorPermissionDenied, cmd.Name, cmd.Level)
	}
	return nil
}

// Authorize resolves text and checks it against level in one step.
func (g *Gate) Authorize(level int, text string) (*Command, error) {
	cmd, err := g.Resolve(text)
	if err != nil {
		return nil, err
	}
	if err := g.Check(level, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
