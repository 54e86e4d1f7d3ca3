package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcvilalta/MineDeezCoords/internal/persistence/backup"
)

func backupCommand() *Command {
	return &Command{
		Definition: Definition{
			Name:        "backup",
			Description: "Download the most recent backup of the coordinates",
		},
		Handler: handleBackup,
	}
}

func handleBackup(ctx context.Context, env *Env, req Request) Response {
	if env.Backups == nil {
		return Failure(ErrCodeNotFound, "📭 Backups are not enabled.")
	}
	path, err := env.Backups.Latest()
	if errors.Is(err, backup.ErrNoBackups) {
		return Failure(ErrCodeNotFound, "📭 No backups available yet.")
	}
	if err != nil {
		env.logf("backup lookup failed err=%v", err)
		return Failure(ErrCodeInternal, "⚠️ Could not read the backups.")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		env.logf("backup read failed path=%s err=%v", path, err)
		return Failure(ErrCodeInternal, "⚠️ Could not read the latest backup.")
	}
	name := filepath.Base(path)
	return Response{
		Content:    fmt.Sprintf("🗂️ Latest backup: `%s`", name),
		Attachment: &Attachment{Name: name, Data: data},
		Ephemeral:  true,
	}
}
