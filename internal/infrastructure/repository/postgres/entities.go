package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

// systemActorName is the fixed directory entry that authors generated
// messages.
const systemActorName = "Task Assistant"

func (d *Directory) FindStaffByCode(ctx context.Context, code string) (*domain.Staff, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT id, code, name, phone
FROM staff
WHERE code = $1
`, code)

	var staff domain.Staff
	if err := row.Scan(&staff.ID, &staff.Code, &staff.Name, &staff.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "find staff by code", err)
		}
		return nil, fmt.Errorf("find staff by code: %w", err)
	}
	return &staff, nil
}

func (d *Directory) FindClientByCode(ctx context.Context, code string) (*domain.Client, error) {
	return d.findClient(ctx, "find client by code", `
SELECT id, code, name, phone
FROM clients
WHERE code = $1
`, code)
}

func (d *Directory) FindClientByPhone(ctx context.Context, phone string) (*domain.Client, error) {
	return d.findClient(ctx, "find client by phone", `
SELECT id, code, name, phone
FROM clients
WHERE phone = $1
`, phone)
}

func (d *Directory) findClient(ctx context.Context, operation, query, arg string) (*domain.Client, error) {
	row := d.db.QueryRowContext(ctx, query, arg)

	var client domain.Client
	if err := row.Scan(&client.ID, &client.Code, &client.Name, &client.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, operation, err)
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return &client, nil
}

// FindOrCreateSystemActor upserts the system actor. The no-op update on
// conflict keeps RETURNING populated for the existing row.
func (d *Directory) FindOrCreateSystemActor(ctx context.Context) (*domain.Actor, error) {
	row := d.db.QueryRowContext(ctx, `
INSERT INTO actors (id, name, kind)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET kind = EXCLUDED.kind
RETURNING id, name, kind
`, uuid.NewString(), systemActorName, string(domain.ActorKindSystem))

	var actor domain.Actor
	var kind string
	if err := row.Scan(&actor.ID, &actor.Name, &kind); err != nil {
		return nil, fmt.Errorf("find or create system actor: %w", err)
	}
	actor.Kind = domain.ActorKind(kind)
	return &actor, nil
}

func (d *Directory) CreateMessage(ctx context.Context, message *domain.Message) error {
	tasks := message.Tasks
	if tasks == nil {
		tasks = []domain.CandidateTask{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal candidate tasks: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
INSERT INTO messages (id, call_id, actor_id, content, tasks, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, message.ID, message.CallID, message.ActorID, message.Content, payload, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (d *Directory) ListMessagesByCall(ctx context.Context, callID string) ([]domain.Message, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT id, call_id, actor_id, content, tasks, created_at
FROM messages
WHERE call_id = $1
ORDER BY created_at ASC
`, callID)
	if err != nil {
		return nil, fmt.Errorf("list messages by call: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		var message domain.Message
		var payload []byte
		if err := rows.Scan(&message.ID, &message.CallID, &message.ActorID, &message.Content, &payload, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal(payload, &message.Tasks); err != nil {
			return nil, fmt.Errorf("unmarshal candidate tasks: %w", err)
		}
		out = append(out, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}
