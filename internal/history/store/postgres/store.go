package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"timetrail/internal/history"
	"timetrail/pkg/domain"
	"timetrail/pkg/platform/sentinel"
	txcontext "timetrail/pkg/platform/tx"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// Store persists history events in PostgreSQL. The unique partial index on
// idempotency_key is the authoritative dedup mechanism: it holds under
// concurrent inserts from separate processes, which no application-level
// check can guarantee.
type Store struct {
	db *sql.DB
}

var _ history.Store = (*Store)(nil)

// New constructs a PostgreSQL-backed history store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// execer prefers a caller-provided transaction so a domain mutation and its
// history row can commit or roll back together.
func (s *Store) execer(ctx context.Context) txcontext.Queryer {
	return txcontext.Runner(ctx, s.db)
}

const eventColumns = `id, company_id, user_id, target_type, target_id, action,
	actor_user_id, reason, diff, metadata, occurred_at, idempotency_key`

func (s *Store) Insert(ctx context.Context, event history.Event) (*history.Event, error) {
	diffJSON, err := marshalNullable(event.Diff)
	if err != nil {
		return nil, fmt.Errorf("marshal diff: %w", err)
	}
	metadataJSON, err := marshalNullable(event.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	var key sql.NullString
	if event.IdempotencyKey != "" {
		key = sql.NullString{String: event.IdempotencyKey, Valid: true}
	}

	query := `
		INSERT INTO history_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		uuid.UUID(event.CompanyID),
		uuid.UUID(event.UserID),
		string(event.TargetType),
		event.TargetID,
		string(event.Action),
		uuid.UUID(event.ActorUserID),
		event.Reason,
		diffJSON,
		metadataJSON,
		event.OccurredAt,
		key,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && key.Valid {
			existing, findErr := s.findByIdempotencyKey(ctx, key.String)
			if findErr != nil {
				return nil, fmt.Errorf("load conflicting history event: %w", findErr)
			}
			return existing, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("insert history event: %w", err)
	}

	stored := event
	return &stored, nil
}

func (s *Store) findByIdempotencyKey(ctx context.Context, key string) (*history.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM history_events
		WHERE idempotency_key = $1
	`
	event, err := scanEvent(s.execer(ctx).QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *Store) QueryPage(ctx context.Context, filter history.Filter, after *history.Cursor, limit int) ([]history.Event, bool, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "company_id = "+arg(uuid.UUID(filter.CompanyID)))
	if filter.TargetType != "" {
		where = append(where, "target_type = "+arg(string(filter.TargetType)))
	}
	if filter.TargetID != "" {
		where = append(where, "target_id = "+arg(filter.TargetID))
	}
	if !filter.UserID.IsNil() {
		where = append(where, "user_id = "+arg(uuid.UUID(filter.UserID)))
	}
	if after != nil {
		ts := arg(after.OccurredAt)
		id := arg(uuid.UUID(after.ID))
		where = append(where, fmt.Sprintf("(occurred_at < %s OR (occurred_at = %s AND id < %s))", ts, ts, id))
	}

	// Fetch one extra row so hasMore reflects actual remaining data and the
	// last full page reports no next cursor.
	query := `
		SELECT ` + eventColumns + `
		FROM history_events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY occurred_at DESC, id DESC
		LIMIT ` + arg(limit+1)

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query history events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	return events, hasMore, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*history.Event, error) {
	var (
		event        history.Event
		id           uuid.UUID
		companyID    uuid.UUID
		userID       uuid.UUID
		actorUserID  uuid.UUID
		diffJSON     []byte
		metadataJSON []byte
		key          sql.NullString
	)
	err := row.Scan(
		&id,
		&companyID,
		&userID,
		&event.TargetType,
		&event.TargetID,
		&event.Action,
		&actorUserID,
		&event.Reason,
		&diffJSON,
		&metadataJSON,
		&event.OccurredAt,
		&key,
	)
	if err != nil {
		return nil, err
	}

	event.ID = domain.EventID(id)
	event.CompanyID = domain.CompanyID(companyID)
	event.UserID = domain.UserID(userID)
	event.ActorUserID = domain.UserID(actorUserID)
	event.IdempotencyKey = key.String

	if event.Diff, err = unmarshalNullable(diffJSON); err != nil {
		return nil, fmt.Errorf("unmarshal diff: %w", err)
	}
	if event.Metadata, err = unmarshalNullable(metadataJSON); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]history.Event, error) {
	var events []history.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history events: %w", err)
	}
	return events, nil
}

func marshalNullable(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalNullable(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
