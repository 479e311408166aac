package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avdeenko/call-intake/internal/core/domain"
	"github.com/avdeenko/call-intake/internal/core/ports"
)

// ProcessCallUseCase runs the background pipeline for one accepted
// recording: speech-to-text, transcript persistence, task extraction, and
// the terminal message. Stages are failure-isolated: once the transcript is
// stored, nothing later rolls it back or withholds it from the UI.
type ProcessCallUseCase struct {
	directory   ports.CallDirectory
	transcriber ports.TranscriptionProvider
	extractor   ports.TaskExtractor
	notifier    ports.Notifier
	logger      *slog.Logger
}

func NewProcessCallUseCase(
	directory ports.CallDirectory,
	transcriber ports.TranscriptionProvider,
	extractor ports.TaskExtractor,
	notifier ports.Notifier,
	logger *slog.Logger,
) *ProcessCallUseCase {
	return &ProcessCallUseCase{
		directory:   directory,
		transcriber: transcriber,
		extractor:   extractor,
		notifier:    notifier,
		logger:      logger,
	}
}

func (uc *ProcessCallUseCase) ProcessCall(ctx context.Context, job domain.PipelineJob) error {
	transcript, err := uc.transcribe(ctx, job)
	if err != nil {
		// Terminal for this run: no transcript stored, no message written.
		return err
	}

	if err := uc.directory.UpdateCallTranscript(ctx, job.CallID, transcript); err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}
	if err := uc.notifier.TranscriptUpdated(ctx, job.CallID, transcript); err != nil {
		uc.logger.Warn("transcript notification failed", "call_id", job.CallID, "error", err)
	}

	tasks := uc.extractTasks(ctx, job, transcript)

	actor, err := uc.directory.FindOrCreateSystemActor(ctx)
	if err != nil {
		uc.logger.Error("ensure system actor failed, skipping message", "call_id", job.CallID, "error", err)
		return nil
	}

	message := &domain.Message{
		ID:        uuid.NewString(),
		CallID:    job.CallID,
		ActorID:   actor.ID,
		Content:   messageContent(tasks),
		Tasks:     tasks,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.directory.CreateMessage(ctx, message); err != nil {
		uc.logger.Error("store extraction message failed", "call_id", job.CallID, "error", err)
		return nil
	}
	if err := uc.notifier.TasksExtracted(ctx, job.CallID, message); err != nil {
		uc.logger.Warn("tasks notification failed", "call_id", job.CallID, "error", err)
	}
	uc.logger.Info("call processed", "call_id", job.CallID, "tasks", len(tasks))
	return nil
}

func (uc *ProcessCallUseCase) transcribe(ctx context.Context, job domain.PipelineJob) (string, error) {
	text, err := uc.transcriber.Transcribe(ctx, job.AudioPath)
	if err != nil {
		return "", domain.WrapError(domain.ErrProviderFailure, "transcribe call", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrProviderFailure, "transcribe call", errors.New("empty transcript"))
	}
	return text, nil
}

func (uc *ProcessCallUseCase) extractTasks(ctx context.Context, job domain.PipelineJob, transcript string) []domain.CandidateTask {
	tasks, err := uc.extractor.ExtractTasks(ctx, transcript, uc.clientNameHint(ctx, job))
	if err != nil {
		uc.logger.Warn("task extraction degraded to zero tasks", "call_id", job.CallID, "error", err)
		return []domain.CandidateTask{}
	}
	if tasks == nil {
		tasks = []domain.CandidateTask{}
	}
	return tasks
}

func (uc *ProcessCallUseCase) clientNameHint(ctx context.Context, job domain.PipelineJob) string {
	call, err := uc.directory.FindCallByFilename(ctx, job.FileName)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			uc.logger.Warn("client hint lookup failed", "call_id", job.CallID, "error", err)
		}
		return ""
	}
	if call.ClientName == nil {
		return ""
	}
	// A synthetic phone label is not a client name; feeding it to the
	// extractor would mislead the prompt.
	if domain.IsPhoneLabel(*call.ClientName) {
		return ""
	}
	return *call.ClientName
}

func messageContent(tasks []domain.CandidateTask) string {
	if len(tasks) == 0 {
		return "No actionable tasks were found in this call."
	}
	if len(tasks) == 1 {
		return "Found 1 candidate task in the call transcript."
	}
	return fmt.Sprintf("Found %d candidate tasks in the call transcript.", len(tasks))
}
