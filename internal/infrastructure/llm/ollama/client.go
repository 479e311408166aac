package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avdeenko/call-intake/internal/core/domain"
	"github.com/avdeenko/call-intake/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Extractor turns a call transcript into candidate tasks via the local
// generation model.
type Extractor struct {
	client   *Client
	executor *resilience.Executor
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func NewExtractorWithResilience(client *Client, executor *resilience.Executor) *Extractor {
	return &Extractor{client: client, executor: executor}
}

// taskDateLayout is the only date form the prompt permits; anything else
// in the model output is dropped rather than guessed at.
const taskDateLayout = "2006-01-02"

type extractedTask struct {
	Title     string `json:"title"`
	Category  string `json:"category"`
	StartDate string `json:"start_date"`
	DueDate   string `json:"due_date"`
}

func (e *Extractor) ExtractTasks(ctx context.Context, transcript, clientName string) ([]domain.CandidateTask, error) {
	call := func(ctx context.Context) ([]domain.CandidateTask, error) {
		respText, err := e.client.generateJSON(ctx, buildTaskPrompt(transcript, clientName))
		if err != nil {
			return nil, err
		}
		return parseTasks(respText)
	}

	if e.executor == nil {
		tasks, err := call(ctx)
		return tasks, wrapTemporaryIfNeeded("extract tasks", err)
	}

	var tasks []domain.CandidateTask
	err := e.executor.Execute(ctx, "ollama.extract", func(ctx context.Context) error {
		var callErr error
		tasks, callErr = call(ctx)
		return callErr
	}, classifyOllamaError)
	return tasks, wrapTemporaryIfNeeded("extract tasks", err)
}

func parseTasks(raw string) ([]domain.CandidateTask, error) {
	var payload struct {
		Tasks []extractedTask `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parse task json: %w", err)
	}

	tasks := make([]domain.CandidateTask, 0, len(payload.Tasks))
	for _, item := range payload.Tasks {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		task := domain.CandidateTask{
			Title:    title,
			Category: strings.TrimSpace(item.Category),
		}
		if parsed, err := time.Parse(taskDateLayout, item.StartDate); err == nil {
			task.StartDate = &parsed
		}
		if parsed, err := time.Parse(taskDateLayout, item.DueDate); err == nil {
			task.DueDate = &parsed
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
