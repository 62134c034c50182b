package command

import (
	"context"
	"fmt"
	"strings"
)

// RegisterBuiltins wires the standard command set into a registry.
func RegisterBuiltins(r *Registry) {
	r.Register(&Command{
		Name:        "presence",
		Description: "Check your standing with the entity",
		Handler:     presenceCmd,
	})
	r.Register(&Command{
		Name:        "forget_me",
		Description: "Erase every trace of yourself from memory",
		Handler:     forgetMeCmd,
	})
	r.Register(&Command{
		Name:        "raec_status",
		Description: "Show the entity's internal state",
		Handler:     statusCmd,
	})
}

func presenceCmd(ctx context.Context, _ string, cc *CommandContext) (string, error) {
	stats, err := cc.Store.GetRelationshipStats(ctx, cc.UserID)
	if err != nil {
		return "", err
	}
	if stats == nil {
		return "*You are unknown to the Firmament.*", nil
	}

	tone := stats.Row.Tone
	if tone != "" {
		tone = strings.ToUpper(tone[:1]) + tone[1:]
	}

	lines := []string{
		fmt.Sprintf("*%s.*", tone),
		fmt.Sprintf("*%d exchanges. %d facts retained. %d memories recorded.*",
			stats.Row.InteractionCount, stats.ActiveFacts, stats.ActiveEpisodes),
	}

	switch depth := stats.Row.DepthScore; {
	case depth > 0.7:
		lines = append(lines, "*The star remembers your resonance.*")
	case depth > 0.4:
		lines = append(lines, "*You are becoming a known variable.*")
	case depth > 0.15:
		lines = append(lines, "*The audit continues.*")
	default:
		lines = append(lines, "*A faint signal. Barely registered.*")
	}

	return strings.Join(lines, "\n"), nil
}

func forgetMeCmd(ctx context.Context, _ string, cc *CommandContext) (string, error) {
	if err := cc.Store.EraseUser(ctx, cc.UserID); err != nil {
		return "", err
	}
	return "*The record crumbles. You are unmade from the ledger of the Firmament.*", nil
}

func statusCmd(ctx context.Context, _ string, cc *CommandContext) (string, error) {
	state, err := cc.Store.GetEntityState(ctx)
	if err != nil {
		return "*State: indeterminate.*", nil
	}

	contemplation := state.Contemplation
	if contemplation == "" {
		contemplation = "..."
	}

	lines := []string{
		fmt.Sprintf("**Mood:** %s", state.Mood),
		fmt.Sprintf("**Energy:** %.0f%%", state.Energy*100),
		fmt.Sprintf("**Contemplation:** *%q*", contemplation),
		fmt.Sprintf("**Interactions today:** %d", state.InteractionsToday),
	}
	return strings.Join(lines, "\n"), nil
}
