package commands

import (
	"context"
	"fmt"
)

func resyncCommand() *Command {
	return &Command{
		Definition: Definition{
			Name:        "force-resync-commands",
			Description: "Re-register the bot's slash commands",
			OwnerOnly:   true,
		},
		Handler: handleResync,
	}
}

func handleResync(ctx context.Context, env *Env, req Request) Response {
	if env.Syncer == nil {
		return Failure(ErrCodeInternal, "⚠️ Command sync is not available.")
	}
	n, err := env.Syncer.SyncCommands(ctx)
	if err != nil {
		env.logf("command sync failed err=%v", err)
		return Failure(ErrCodeInternal, fmt.Sprintf("⚠️ Command sync failed: %v", err))
	}
	return Response{Content: fmt.Sprintf("🔁 Re-registered %d commands.", n), Ephemeral: true}
}
