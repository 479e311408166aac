// Package notify provides a logging Notifier for deployments that run
// without an event broker. Events land in the structured log instead of
// on a bus, which keeps the pipeline observable in single-binary mode.
package notify

import (
	"context"
	"log/slog"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) CallCreated(_ context.Context, call *domain.Call) error {
	n.logger.Info("call created",
		"call_id", call.ID,
		"file_name", call.FileName,
		"caller", call.CallerName)
	return nil
}

func (n *LogNotifier) TranscriptUpdated(_ context.Context, callID, transcript string) error {
	n.logger.Info("transcript updated",
		"call_id", callID,
		"transcript_chars", len(transcript))
	return nil
}

func (n *LogNotifier) TasksExtracted(_ context.Context, callID string, message *domain.Message) error {
	n.logger.Info("tasks extracted",
		"call_id", callID,
		"message_id", message.ID,
		"task_count", len(message.Tasks))
	return nil
}
