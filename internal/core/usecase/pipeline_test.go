package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

type processDirectoryFake struct {
	call          *domain.Call
	transcripts   map[string]string
	transcriptErr error
	actor         *domain.Actor
	actorErr      error
	messages      []*domain.Message
	messageErr    error
}

func newProcessDirectoryFake() *processDirectoryFake {
	return &processDirectoryFake{
		transcripts: map[string]string{},
		actor:       &domain.Actor{ID: "actor-1", Name: "Task Assistant", Kind: domain.ActorKindSystem},
	}
}

func (f *processDirectoryFake) FindCallByFilename(_ context.Context, fileName string) (*domain.Call, error) {
	if f.call != nil && f.call.FileName == fileName {
		return f.call, nil
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find call by filename", errors.New(fileName))
}

func (f *processDirectoryFake) CreateCall(context.Context, *domain.Call) error {
	return errors.New("not implemented")
}

func (f *processDirectoryFake) SetCallFileExists(context.Context, string, bool) error {
	return errors.New("not implemented")
}

func (f *processDirectoryFake) UpdateCallTranscript(_ context.Context, callID, transcript string) error {
	if f.transcriptErr != nil {
		return f.transcriptErr
	}
	f.transcripts[callID] = transcript
	return nil
}

func (f *processDirectoryFake) ListRecentCalls(context.Context, int) ([]domain.Call, error) {
	return nil, errors.New("not implemented")
}

func (f *processDirectoryFake) FindStaffByCode(context.Context, string) (*domain.Staff, error) {
	return nil, errors.New("not implemented")
}

func (f *processDirectoryFake) FindClientByCode(context.Context, string) (*domain.Client, error) {
	return nil, errors.New("not implemented")
}

func (f *processDirectoryFake) FindClientByPhone(context.Context, string) (*domain.Client, error) {
	return nil, errors.New("not implemented")
}

func (f *processDirectoryFake) FindOrCreateSystemActor(context.Context) (*domain.Actor, error) {
	if f.actorErr != nil {
		return nil, f.actorErr
	}
	return f.actor, nil
}

func (f *processDirectoryFake) CreateMessage(_ context.Context, message *domain.Message) error {
	if f.messageErr != nil {
		return f.messageErr
	}
	copyMsg := *message
	f.messages = append(f.messages, &copyMsg)
	return nil
}

func (f *processDirectoryFake) ListMessagesByCall(context.Context, string) ([]domain.Message, error) {
	return nil, errors.New("not implemented")
}

type transcriberFake struct {
	text string
	err  error
}

func (f *transcriberFake) Transcribe(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type extractorFake struct {
	tasks      []domain.CandidateTask
	err        error
	lastHint   string
	lastInput  string
	callsCount int
}

func (f *extractorFake) ExtractTasks(_ context.Context, transcript, clientName string) ([]domain.CandidateTask, error) {
	f.callsCount++
	f.lastInput = transcript
	f.lastHint = clientName
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks, nil
}

func pipelineJob() domain.PipelineJob {
	return domain.PipelineJob{
		CallID:    "call-1",
		AudioPath: "/rec/0400-400_20250915134049_mix.wav",
		FileName:  "0400-400_20250915134049_mix.wav",
	}
}

func TestProcessCallStoresTranscriptAndTasks(t *testing.T) {
	clientName := "Rosen Ltd"
	dir := newProcessDirectoryFake()
	dir.call = &domain.Call{ID: "call-1", FileName: pipelineJob().FileName, ClientName: &clientName}
	extractor := &extractorFake{tasks: []domain.CandidateTask{{Title: "Send quote"}, {Title: "Schedule visit"}}}
	notifier := &notifierFake{}
	uc := NewProcessCallUseCase(dir, &transcriberFake{text: "  hello world  "}, extractor, notifier, testLogger())

	if err := uc.ProcessCall(context.Background(), pipelineJob()); err != nil {
		t.Fatalf("ProcessCall() error = %v", err)
	}
	if dir.transcripts["call-1"] != "hello world" {
		t.Fatalf("expected trimmed transcript stored, got %q", dir.transcripts["call-1"])
	}
	if extractor.lastHint != "Rosen Ltd" {
		t.Fatalf("expected client hint, got %q", extractor.lastHint)
	}
	if len(dir.messages) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(dir.messages))
	}
	msg := dir.messages[0]
	if len(msg.Tasks) != 2 {
		t.Fatalf("expected 2 candidate tasks, got %d", len(msg.Tasks))
	}
	if !strings.Contains(msg.Content, "2 candidate tasks") {
		t.Fatalf("unexpected message content %q", msg.Content)
	}
	if len(notifier.transcripts) != 1 || len(notifier.taskMessages) != 1 {
		t.Fatalf("expected transcript and tasks notifications, got %v / %v", notifier.transcripts, notifier.taskMessages)
	}
}

func TestProcessCallSyntheticPhoneLabelIsNotAClientHint(t *testing.T) {
	label := domain.PhoneLabel("01052913391")
	dir := newProcessDirectoryFake()
	dir.call = &domain.Call{ID: "call-1", FileName: pipelineJob().FileName, ClientName: &label}
	extractor := &extractorFake{}
	uc := NewProcessCallUseCase(dir, &transcriberFake{text: "hello"}, extractor, &notifierFake{}, testLogger())

	if err := uc.ProcessCall(context.Background(), pipelineJob()); err != nil {
		t.Fatalf("ProcessCall() error = %v", err)
	}
	if extractor.lastHint != "" {
		t.Fatalf("expected no client hint for a synthetic label, got %q", extractor.lastHint)
	}
}

func TestProcessCallEmptyTranscriptIsTerminal(t *testing.T) {
	dir := newProcessDirectoryFake()
	extractor := &extractorFake{}
	uc := NewProcessCallUseCase(dir, &transcriberFake{text: "   \n\t "}, extractor, &notifierFake{}, testLogger())

	err := uc.ProcessCall(context.Background(), pipelineJob())
	if err == nil {
		t.Fatalf("expected error for empty transcript")
	}
	if !domain.IsKind(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure kind, got %v", err)
	}
	if len(dir.transcripts) != 0 {
		t.Fatalf("expected no transcript stored")
	}
	if extractor.callsCount != 0 {
		t.Fatalf("expected no extraction after terminal transcription failure")
	}
	if len(dir.messages) != 0 {
		t.Fatalf("expected no message after terminal transcription failure")
	}
}

func TestProcessCallProviderErrorIsTerminal(t *testing.T) {
	dir := newProcessDirectoryFake()
	uc := NewProcessCallUseCase(dir, &transcriberFake{err: errors.New("model offline")}, &extractorFake{}, &notifierFake{}, testLogger())

	err := uc.ProcessCall(context.Background(), pipelineJob())
	if !domain.IsKind(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure kind, got %v", err)
	}
	if len(dir.transcripts) != 0 || len(dir.messages) != 0 {
		t.Fatalf("expected nothing persisted after provider error")
	}
}

func TestProcessCallZeroTasksStillWritesMessage(t *testing.T) {
	dir := newProcessDirectoryFake()
	uc := NewProcessCallUseCase(dir, &transcriberFake{text: "short call"}, &extractorFake{}, &notifierFake{}, testLogger())

	if err := uc.ProcessCall(context.Background(), pipelineJob()); err != nil {
		t.Fatalf("ProcessCall() error = %v", err)
	}
	if len(dir.messages) != 1 {
		t.Fatalf("expected terminal message, got %d", len(dir.messages))
	}
	msg := dir.messages[0]
	if msg.Tasks == nil || len(msg.Tasks) != 0 {
		t.Fatalf("expected empty, non-nil task list, got %v", msg.Tasks)
	}
	if !strings.Contains(msg.Content, "No actionable tasks") {
		t.Fatalf("unexpected empty-case content %q", msg.Content)
	}
}

func TestProcessCallExtractionErrorDegradesToZeroTasks(t *testing.T) {
	dir := newProcessDirectoryFake()
	extractor := &extractorFake{err: errors.New("malformed llm output")}
	uc := NewProcessCallUseCase(dir, &transcriberFake{text: "call text"}, extractor, &notifierFake{}, testLogger())

	if err := uc.ProcessCall(context.Background(), pipelineJob()); err != nil {
		t.Fatalf("ProcessCall() error = %v", err)
	}
	if dir.transcripts["call-1"] != "call text" {
		t.Fatalf("expected transcript to survive extraction failure")
	}
	if len(dir.messages) != 1 || len(dir.messages[0].Tasks) != 0 {
		t.Fatalf("expected empty-task message after degraded extraction")
	}
}

func TestProcessCallMessageFailureKeepsTranscript(t *testing.T) {
	dir := newProcessDirectoryFake()
	dir.messageErr = errors.New("insert failed")
	notifier := &notifierFake{}
	uc := NewProcessCallUseCase(dir, &transcriberFake{text: "call text"}, &extractorFake{}, notifier, testLogger())

	if err := uc.ProcessCall(context.Background(), pipelineJob()); err != nil {
		t.Fatalf("expected message failure to be contained, got %v", err)
	}
	if dir.transcripts["call-1"] != "call text" {
		t.Fatalf("expected transcript to stay persisted")
	}
	if len(notifier.taskMessages) != 0 {
		t.Fatalf("expected no tasks notification after failed message insert")
	}
}

func TestProcessCallTranscriptPersistFailureAbortsRun(t *testing.T) {
	dir := newProcessDirectoryFake()
	dir.transcriptErr = errors.New("db down")
	extractor := &extractorFake{}
	uc := NewProcessCallUseCase(dir, &transcriberFake{text: "call text"}, extractor, &notifierFake{}, testLogger())

	if err := uc.ProcessCall(context.Background(), pipelineJob()); err == nil {
		t.Fatalf("expected error when transcript cannot be stored")
	}
	if extractor.callsCount != 0 {
		t.Fatalf("expected no extraction after failed transcript persist")
	}
}
