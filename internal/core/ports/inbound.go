package ports

import (
	"context"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

// RecordingIngestor is the inbound contract for turning a detected file into
// a persisted Call exactly once.
type RecordingIngestor interface {
	HandleDetected(ctx context.Context, file domain.DetectedFile) error
}

// CallProcessor is the inbound contract for the background transcription
// pipeline of one Call.
type CallProcessor interface {
	ProcessCall(ctx context.Context, job domain.PipelineJob) error
}
