package eventsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nhle/toolroom/internal/model"
)

const (
	postgresOperationTimeout = 5 * time.Second
	listenerMinReconnect     = 2 * time.Second
	listenerMaxReconnect     = time.Minute
	listenerPingInterval     = 90 * time.Second

	// DefaultNotifyChannel is fired by the logs insert trigger.
	DefaultNotifyChannel = "inventory_logs"
)

const recentQuery = `
SELECT
	l.id::text                             AS id,
	l.action                               AS action,
	COALESCE(l.from_branch_id::text, '')   AS from_branch_id,
	COALESCE(l.to_branch_id::text, '')     AS to_branch_id,
	COALESCE(fb.name, '')                  AS from_branch_name,
	COALESCE(tb.name, '')                  AS to_branch_name,
	COALESCE(l.tool_id::text, '')          AS tool_id,
	COALESCE(t.name, '')                   AS tool_name,
	COALESCE(t.status, '')                 AS tool_status,
	COALESCE(t.branch_id::text, '')        AS tool_branch_id,
	COALESCE(t.target_branch_id::text, '') AS tool_target_branch_id,
	COALESCE(l.notes, '')                  AS notes,
	COALESCE(l.operator_id::text, '')      AS operator_id,
	l.created_at                           AS created_at
FROM logs l
LEFT JOIN tools t ON t.id = l.tool_id
LEFT JOIN branches fb ON fb.id = l.from_branch_id
LEFT JOIN branches tb ON tb.id = l.to_branch_id
ORDER BY l.created_at DESC, l.id DESC
LIMIT $1`

const insertQuery = `
INSERT INTO logs (id, action, from_branch_id, to_branch_id, tool_id, notes, operator_id)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''))
RETURNING created_at`

// schemaSQL is installed by Bootstrap. %s is the quoted notify channel.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS branches (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tools (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'FREE',
	branch_id        TEXT REFERENCES branches(id),
	target_branch_id TEXT REFERENCES branches(id)
);

CREATE TABLE IF NOT EXISTS logs (
	id             TEXT PRIMARY KEY,
	action         TEXT NOT NULL,
	from_branch_id TEXT,
	to_branch_id   TEXT,
	tool_id        TEXT REFERENCES tools(id),
	notes          TEXT,
	operator_id    TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs (created_at DESC, id DESC);

CREATE OR REPLACE FUNCTION toolroom_notify_log_insert() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify(TG_ARGV[0], '');
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS logs_notify_insert ON logs;
CREATE TRIGGER logs_notify_insert AFTER INSERT ON logs
	FOR EACH ROW EXECUTE FUNCTION toolroom_notify_log_insert(%s);
`

// logRow is the flat shape of recentQuery.
type logRow struct {
	ID                 string    `db:"id"`
	Action             string    `db:"action"`
	FromBranchID       string    `db:"from_branch_id"`
	ToBranchID         string    `db:"to_branch_id"`
	FromBranchName     string    `db:"from_branch_name"`
	ToBranchName       string    `db:"to_branch_name"`
	ToolID             string    `db:"tool_id"`
	ToolName           string    `db:"tool_name"`
	ToolStatus         string    `db:"tool_status"`
	ToolBranchID       string    `db:"tool_branch_id"`
	ToolTargetBranchID string    `db:"tool_target_branch_id"`
	Notes              string    `db:"notes"`
	OperatorID         string    `db:"operator_id"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r logRow) record() model.LogRecord {
	return model.LogRecord{
		ID:             r.ID,
		Action:         model.Action(r.Action),
		FromBranch:     model.BranchID(r.FromBranchID),
		ToBranch:       model.BranchID(r.ToBranchID),
		FromBranchName: r.FromBranchName,
		ToBranchName:   r.ToBranchName,
		Item: model.ItemRef{
			ID:             r.ToolID,
			Name:           r.ToolName,
			Status:         model.ItemStatus(r.ToolStatus),
			BranchID:       model.BranchID(r.ToolBranchID),
			TargetBranchID: model.BranchID(r.ToolTargetBranchID),
		},
		Notes:      r.Notes,
		OperatorID: r.OperatorID,
		CreatedAt:  r.CreatedAt,
	}
}

// listener is the subset of *pq.Listener the subscription loop needs.
type listener interface {
	Listen(channel string) error
	Ping() error
	Close() error
	NotificationChannel() <-chan *pq.Notification
}

type pqListener struct {
	*pq.Listener
}

func (l pqListener) NotificationChannel() <-chan *pq.Notification {
	return l.Notify
}

type listenerFactory func(dsn string, logger *zap.Logger) listener

func newPQListener(dsn string, logger *zap.Logger) listener {
	l := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("event source listener", zap.Int("event", int(ev)), zap.Error(err))
			}
		})
	return pqListener{Listener: l}
}

// PostgresOptions configures a PostgresSource.
type PostgresOptions struct {
	// DSN is needed for Subscribe, which opens its own connection.
	DSN           string
	NotifyChannel string
	Logger        *zap.Logger
}

// PostgresSource reads and writes the logs table of the hosted backend.
type PostgresSource struct {
	db          *sqlx.DB
	dsn         string
	channel     string
	logger      *zap.Logger
	newListener listenerFactory
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*PostgresSource, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening event source: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to event source: %w", err)
	}

	opts.DSN = dsn
	return NewPostgresSource(db, opts), nil
}

// NewPostgresSource wraps an open database handle.
func NewPostgresSource(db *sqlx.DB, opts PostgresOptions) *PostgresSource {
	channel := opts.NotifyChannel
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{
		db:          db,
		dsn:         opts.DSN,
		channel:     channel,
		logger:      logger,
		newListener: newPQListener,
	}
}

// Bootstrap creates the tables and the insert notify trigger.
func (s *PostgresSource) Bootstrap(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	ddl := fmt.Sprintf(schemaSQL, pq.QuoteLiteral(s.channel))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("bootstrapping event source schema: %w", err)
	}
	return nil
}

// Recent implements Source.
func (s *PostgresSource) Recent(ctx context.Context, limit int) ([]model.LogRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, recentQuery, limit); err != nil {
		return nil, &FetchError{Op: "recent", Err: err}
	}

	records := make([]model.LogRecord, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}

// Insert implements Source.
func (s *PostgresSource) Insert(ctx context.Context, rec model.NewLogRecord) (model.LogRecord, error) {
	if err := Validate(rec); err != nil {
		return model.LogRecord{}, &WriteError{Action: rec.Action, Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	id := uuid.New().String()
	var createdAt time.Time
	err := s.db.QueryRowxContext(ctx, insertQuery,
		id, string(rec.Action),
		string(rec.FromBranch), string(rec.ToBranch),
		rec.ItemID, rec.Notes, rec.OperatorID,
	).Scan(&createdAt)
	if err != nil {
		return model.LogRecord{}, &WriteError{Action: rec.Action, Err: err}
	}

	return model.LogRecord{
		ID:         id,
		Action:     rec.Action,
		FromBranch: rec.FromBranch,
		ToBranch:   rec.ToBranch,
		Item:       model.ItemRef{ID: rec.ItemID},
		Notes:      rec.Notes,
		OperatorID: rec.OperatorID,
		CreatedAt:  createdAt,
	}, nil
}

// Subscribe implements Source using LISTEN on the notify channel. A
// listener reconnect is reported as an insert since notifications may
// have been lost while disconnected.
func (s *PostgresSource) Subscribe(ctx context.Context, onInsert func()) (Subscription, error) {
	if s.dsn == "" {
		return nil, &FetchError{Op: "subscribe", Err: fmt.Errorf("no dsn for listener")}
	}
	l := s.newListener(s.dsn, s.logger)
	if err := l.Listen(s.channel); err != nil {
		l.Close()
		return nil, &FetchError{Op: "subscribe", Err: err}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &listenSubscription{
		cancel:   cancel,
		done:     make(chan struct{}),
		listener: l,
	}
	go sub.run(subCtx, onInsert, s.logger)

	s.logger.Info("subscribed to event source", zap.String("channel", s.channel))
	return sub, nil
}

// Close closes the database handle.
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

type listenSubscription struct {
	cancel    context.CancelFunc
	done      chan struct{}
	listener  listener
	closeOnce sync.Once
	closeErr  error
}

func (sub *listenSubscription) run(ctx context.Context, onInsert func(), logger *zap.Logger) {
	defer close(sub.done)

	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	notifications := sub.listener.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notifications:
			if !ok {
				return
			}
			onInsert()
		case <-ping.C:
			if err := sub.listener.Ping(); err != nil {
				logger.Warn("event source listener ping failed", zap.Error(err))
			}
		}
	}
}

// Close stops the loop and releases the listener connection.
func (sub *listenSubscription) Close() error {
	sub.closeOnce.Do(func() {
		sub.cancel()
		<-sub.done
		sub.closeErr = sub.listener.Close()
	})
	return sub.closeErr
}
