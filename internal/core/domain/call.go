package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnidentifiedLabel is the caller display name used when the recording
// filename did not resolve to a known staff member.
const UnidentifiedLabel = "unidentified"

// phoneLabelPrefix marks a synthetic client label built from a phone
// number that matched no known client.
const phoneLabelPrefix = "phone: "

// PhoneLabel builds the synthetic client label for an unmatched phone
// number.
func PhoneLabel(number string) string {
	return phoneLabelPrefix + number
}

// IsPhoneLabel reports whether a client label is synthetic rather than a
// real client name.
func IsPhoneLabel(label string) bool {
	return strings.HasPrefix(label, phoneLabelPrefix)
}

// Call is one processed audio recording and its derived metadata. The
// recording filename is the business key: at most one Call exists per
// filename.
type Call struct {
	ID          string    `json:"id"`
	CallDate    time.Time `json:"call_date"`
	CallerName  string    `json:"caller_name"`
	ClientName  *string   `json:"client_name,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	FileName    string    `json:"file_name"`
	Duration    string    `json:"duration"`
	Transcript  *string   `json:"transcript,omitempty"`
	FileExists  bool      `json:"file_exists"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Staff struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Client struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type ActorKind string

const ActorKindSystem ActorKind = "system"

// Actor authors generated messages. The single system actor is created on
// first use and reused afterwards.
type Actor struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Kind ActorKind `json:"kind"`
}

// CandidateTask is an unconfirmed work item proposed from a transcript.
// Assignee and client stay empty until a human reviews the proposal.
type CandidateTask struct {
	Title      string     `json:"title"`
	Category   string     `json:"category,omitempty"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	AssigneeID string     `json:"assignee_id"`
	ClientID   string     `json:"client_id"`
}

// Message is the terminal record of one pipeline run for a Call. It is
// written exactly once per completed extraction, with or without tasks.
type Message struct {
	ID        string          `json:"id"`
	CallID    string          `json:"call_id"`
	ActorID   string          `json:"actor_id"`
	Content   string          `json:"content"`
	Tasks     []CandidateTask `json:"tasks"`
	CreatedAt time.Time       `json:"created_at"`
}

// DetectedFile is what the folder watcher hands to ingestion. Not persisted.
type DetectedFile struct {
	Path       string
	Name       string
	DetectedAt time.Time
}

// PipelineJob carries one accepted recording into the background
// transcription pipeline.
type PipelineJob struct {
	CallID    string `json:"call_id"`
	AudioPath string `json:"audio_path"`
	FileName  string `json:"file_name"`
}

// FormatCallDuration renders a playable duration as M:SS with zero-padded
// seconds. Unknown or non-positive durations render as 0:00.
func FormatCallDuration(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
