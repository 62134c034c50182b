// Package command implements the bang-prefixed utility commands: the
// surfaces that read or erase memory without a model call.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nidhogg/firmament/internal/mood"
	"github.com/nidhogg/firmament/internal/store"
)

// Store is the slice of the store commands read and write.
type Store interface {
	GetEntityState(ctx context.Context) (mood.State, error)
	GetRelationshipStats(ctx context.Context, userID string) (*store.RelationshipStats, error)
	EraseUser(ctx context.Context, userID string) error
}

// Command represents a bang command.
type Command struct {
	Name        string
	Description string
	Handler     CommandHandler
}

// CommandHandler is the function signature for command execution.
type CommandHandler func(ctx context.Context, args string, cc *CommandContext) (string, error)

// CommandContext provides dependencies to command handlers.
type CommandContext struct {
	Platform  string
	ChannelID string
	UserID    string
	UserName  string
	Store     Store
}

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	mu       sync.RWMutex
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name] = cmd
}

// Dispatch parses a "!command args" string and executes the matching
// handler. An unknown command returns empty output so the caller can stay
// silent, matching how the entity ignores rituals it does not recognize.
func (r *Registry) Dispatch(ctx context.Context, input string, cc *CommandContext) (string, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "!")
	parts := strings.SplitN(input, " ", 2)
	name := strings.ToLower(parts[0])
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return "", nil
	}

	out, err := cmd.Handler(ctx, args, cc)
	if err != nil {
		return "", fmt.Errorf("command %s: %w", name, err)
	}
	return out, nil
}

// Known reports whether input names a registered command.
func (r *Registry) Known(input string) bool {
	input = strings.TrimPrefix(strings.TrimSpace(input), "!")
	name := strings.ToLower(strings.SplitN(input, " ", 2)[0])
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[name]
	return ok
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
