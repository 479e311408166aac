package ports

import (
	"context"
	"time"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

// CallDirectory is the persistence collaborator: call records, the staff and
// client entity spaces, the system actor, and generated messages.
//
// Lookups report a miss as a domain.ErrNotFound kind; absence is a normal
// outcome for every Find method. CreateCall reports a duplicate recording
// filename as domain.ErrCallExists so that racing ingestions collapse into
// the idempotent no-op contract.
type CallDirectory interface {
	FindCallByFilename(ctx context.Context, fileName string) (*domain.Call, error)
	CreateCall(ctx context.Context, call *domain.Call) error
	SetCallFileExists(ctx context.Context, callID string, exists bool) error
	UpdateCallTranscript(ctx context.Context, callID, transcript string) error
	ListRecentCalls(ctx context.Context, limit int) ([]domain.Call, error)

	FindStaffByCode(ctx context.Context, code string) (*domain.Staff, error)
	FindClientByCode(ctx context.Context, code string) (*domain.Client, error)
	FindClientByPhone(ctx context.Context, phone string) (*domain.Client, error)

	FindOrCreateSystemActor(ctx context.Context) (*domain.Actor, error)
	CreateMessage(ctx context.Context, message *domain.Message) error
	ListMessagesByCall(ctx context.Context, callID string) ([]domain.Message, error)
}

// TranscriptionProvider converts a recording into text. Consumed as a black
// box; transcript content is not validated beyond emptiness.
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TaskExtractor proposes candidate work items from a transcript. The client
// name hint may be empty.
type TaskExtractor interface {
	ExtractTasks(ctx context.Context, transcript, clientName string) ([]domain.CandidateTask, error)
}

// Notifier pushes events to the presentation layer, at-least-once, no
// acknowledgement expected.
type Notifier interface {
	CallCreated(ctx context.Context, call *domain.Call) error
	TranscriptUpdated(ctx context.Context, callID, transcript string) error
	TasksExtracted(ctx context.Context, callID string, message *domain.Message) error
}

// PipelineQueue hands accepted recordings to the background transcription
// pipeline and feeds them back to a consumer.
type PipelineQueue interface {
	PublishCallAccepted(ctx context.Context, job domain.PipelineJob) error
	SubscribeCallAccepted(ctx context.Context, handler func(context.Context, domain.PipelineJob) error) error
}

// DurationProber derives the playable duration of a recording file.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}
