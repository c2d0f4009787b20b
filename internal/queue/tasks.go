package queue

import (
	"context"
	"encoding/json"
	"log/slog"
)

// DebugTask is the name of the diagnostic task.
const DebugTask = "debug"

// Debug logs the envelope it was called with and echoes it back.
func Debug(log *slog.Logger) Handler {
	return func(ctx context.Context, msg Message) (any, error) {
		log.InfoContext(ctx, "debug task request",
			slog.String("task_id", msg.ID),
			slog.String("task", msg.Task),
			slog.String("content_type", msg.ContentType),
			slog.Time("created_at", msg.CreatedAt),
			slog.String("args", string(msg.Args)))

		echo := map[string]any{"task_id": msg.ID, "task": msg.Task}
		if len(msg.Args) > 0 {
			echo["args"] = json.RawMessage(msg.Args)
		}
		return echo, nil
	}
}
