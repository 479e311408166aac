package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avdeenko/call-intake/internal/core/domain"
	"github.com/avdeenko/call-intake/internal/core/ports"
)

// IngestRecordingUseCase turns a detected recording into a persisted Call
// exactly once and dispatches background transcription without waiting for
// it. Lookups and duration probing are best-effort: a recording with an
// unreadable name, unknown staff code, or a broken audio stream still
// produces a Call.
type IngestRecordingUseCase struct {
	directory ports.CallDirectory
	prober    ports.DurationProber
	queue     ports.PipelineQueue
	notifier  ports.Notifier
	logger    *slog.Logger
}

func NewIngestRecordingUseCase(
	directory ports.CallDirectory,
	prober ports.DurationProber,
	queue ports.PipelineQueue,
	notifier ports.Notifier,
	logger *slog.Logger,
) *IngestRecordingUseCase {
	return &IngestRecordingUseCase{
		directory: directory,
		prober:    prober,
		queue:     queue,
		notifier:  notifier,
		logger:    logger,
	}
}

func (uc *IngestRecordingUseCase) HandleDetected(ctx context.Context, file domain.DetectedFile) error {
	existing, err := uc.directory.FindCallByFilename(ctx, file.Name)
	if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		uc.logger.Debug("recording already ingested", "file", file.Name)
		return nil
	}

	call := uc.buildCall(ctx, file)
	if err := uc.directory.CreateCall(ctx, call); err != nil {
		if domain.IsKind(err, domain.ErrCallExists) {
			// Lost the check-then-create race to a concurrent event for the
			// same filename; the unique constraint makes this a no-op.
			uc.logger.Debug("recording already ingested", "file", file.Name)
			return nil
		}
		return fmt.Errorf("create call: %w", err)
	}
	uc.logger.Info("call created",
		"call_id", call.ID,
		"file", call.FileName,
		"caller", call.CallerName,
		"duration", call.Duration,
	)

	if err := uc.notifier.CallCreated(ctx, call); err != nil {
		uc.logger.Warn("call created notification failed", "call_id", call.ID, "error", err)
	}
	job := domain.PipelineJob{CallID: call.ID, AudioPath: file.Path, FileName: file.Name}
	if err := uc.queue.PublishCallAccepted(ctx, job); err != nil {
		// The Call stays; the transcript is simply never produced for it.
		uc.logger.Error("enqueue transcription job failed", "call_id", call.ID, "error", err)
	}
	return nil
}

func (uc *IngestRecordingUseCase) buildCall(ctx context.Context, file domain.DetectedFile) *domain.Call {
	now := time.Now().UTC()
	call := &domain.Call{
		ID:         uuid.NewString(),
		CallDate:   now,
		CallerName: domain.UnidentifiedLabel,
		FileName:   file.Name,
		Duration:   uc.probeDuration(ctx, file.Path),
		FileExists: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	parsed, ok := domain.ParseRecordingFilename(file.Name)
	if !ok {
		uc.logger.Info("filename outside recorder convention, ingesting unidentified", "file", file.Name)
		return call
	}
	call.CallDate = parsed.CallTime

	if staff := uc.findStaff(ctx, parsed.StaffCode); staff != nil {
		call.CallerName = staff.Name
	}

	if parsed.IsPhoneNumber {
		call.PhoneNumber = parsed.ClientIdentifier
		if client := uc.findClientByPhone(ctx, parsed.ClientIdentifier); client != nil {
			call.ClientName = &client.Name
		} else {
			label := domain.PhoneLabel(parsed.ClientIdentifier)
			call.ClientName = &label
		}
		return call
	}

	if client := uc.findClientByCode(ctx, parsed.ClientIdentifier); client != nil {
		call.ClientName = &client.Name
		call.PhoneNumber = client.Phone
	}
	return call
}

func (uc *IngestRecordingUseCase) probeDuration(ctx context.Context, path string) string {
	d, err := uc.prober.ProbeDuration(ctx, path)
	if err != nil {
		uc.logger.Warn("duration probe failed, falling back to 0:00", "path", path, "error", err)
		return domain.FormatCallDuration(0)
	}
	return domain.FormatCallDuration(d)
}

func (uc *IngestRecordingUseCase) findStaff(ctx context.Context, code string) *domain.Staff {
	staff, err := uc.directory.FindStaffByCode(ctx, code)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			uc.logger.Warn("staff lookup failed", "code", code, "error", err)
		}
		return nil
	}
	return staff
}

func (uc *IngestRecordingUseCase) findClientByPhone(ctx context.Context, phone string) *domain.Client {
	client, err := uc.directory.FindClientByPhone(ctx, phone)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			uc.logger.Warn("client phone lookup failed", "phone", phone, "error", err)
		}
		return nil
	}
	return client
}

func (uc *IngestRecordingUseCase) findClientByCode(ctx context.Context, code string) *domain.Client {
	client, err := uc.directory.FindClientByCode(ctx, code)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			uc.logger.Warn("client code lookup failed", "code", code, "error", err)
		}
		return nil
	}
	return client
}
