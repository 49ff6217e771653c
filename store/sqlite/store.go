package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/provider"
	intakestore "github.com/xraph/intake/store"
)

// compile-time interface check
var _ intakestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("intake/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("intake/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Provider Store ====================

func (s *Store) CreateProvider(ctx context.Context, p *provider.Config) error {
	taken, err := s.sdb.NewSelect((*providerModel)(nil)).
		Where("token = ?", p.Token).
		Count(ctx)
	if err != nil {
		return err
	}
	if taken > 0 {
		return provider.ErrExists
	}

	m := toProviderModel(p)
	res, err := s.sdb.NewInsert(m).
		OnConflict("(name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return provider.ErrExists
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, name string) (*provider.Config, error) {
	m := new(providerModel)
	err := s.sdb.NewSelect(m).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, provider.ErrNotFound
		}
		return nil, err
	}
	return fromProviderModel(m), nil
}

func (s *Store) UpdateProvider(ctx context.Context, p *provider.Config) error {
	m := toProviderModel(p)
	m.UpdatedAt = now()

	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return provider.ErrNotFound
	}
	return nil
}

func (s *Store) ListProviders(ctx context.Context, opts provider.ListOpts) ([]*provider.Config, error) {
	var models []providerModel
	q := s.sdb.NewSelect(&models)

	if opts.ActiveOnly {
		q = q.Where("active = 1")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("name ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*provider.Config, len(models))
	for i := range models {
		result[i] = fromProviderModel(&models[i])
	}
	return result, nil
}

func (s *Store) SetProviderActive(ctx context.Context, name string, active bool) error {
	res, err := s.sdb.NewUpdate((*providerModel)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", now()).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return provider.ErrNotFound
	}
	return nil
}

// ==================== Event Store ====================

func (s *Store) FindOrCreateEvent(ctx context.Context, ev *event.Event) (*event.Event, bool, error) {
	m := toEventModel(ev)
	res, err := s.sdb.NewInsert(m).
		OnConflict("(provider, external_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows > 0 {
		return ev, true, nil
	}

	// Lost to an earlier insert. Flip the winner's dedup state and hand it back.
	if _, err := s.sdb.NewUpdate((*eventModel)(nil)).
		Set("dedup_state = ?", string(event.DedupDuplicate)).
		Set("updated_at = ?", now()).
		Where("provider = ?", ev.Provider).
		Where("external_id = ?", ev.ExternalID).
		Exec(ctx); err != nil {
		return nil, false, err
	}

	existing := new(eventModel)
	if err := s.sdb.NewSelect(existing).
		Where("provider = ?", ev.Provider).
		Where("external_id = ?", ev.ExternalID).
		Scan(ctx); err != nil {
		return nil, false, err
	}
	stored, err := fromEventModel(existing)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (s *Store) GetEvent(ctx context.Context, eventID id.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", eventID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, event.ErrNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) UpdateEventStatus(ctx context.Context, eventID id.ID, status event.Status) error {
	res, err := s.sdb.NewUpdate((*eventModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", now()).
		Where("id = ?", eventID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return event.ErrNotFound
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.sdb.NewSelect(&models)

	if opts.Provider != "" {
		q = q.Where("provider = ?", opts.Provider)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Type != "" {
		q = q.Where("type = ?", opts.Type)
	}
	if !opts.Since.IsZero() {
		q = q.Where("created_at >= ?", opts.Since)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

// ==================== Execution Store ====================

func (s *Store) CreateExecutionBatch(ctx context.Context, execs []*dispatch.Execution) error {
	if len(execs) == 0 {
		return nil
	}
	// A single multi-row insert keeps the fan-out atomic.
	models := make([]executionModel, len(execs))
	for i, x := range execs {
		models[i] = *toExecutionModel(x)
	}
	_, err := s.sdb.NewInsert(&models).Exec(ctx)
	return err
}

func (s *Store) DequeueExecutions(ctx context.Context, limit int) ([]*dispatch.Execution, error) {
	// Dequeue only reads. Exclusivity comes from the versioned claim, so a
	// row seen by two pollers is still processed exactly once.
	var models []executionModel
	q := s.sdb.NewSelect(&models).
		Where("status = ?", string(dispatch.StatusPending)).
		Where("next_attempt_at <= ?", now()).
		OrderExpr("next_attempt_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*dispatch.Execution, len(models))
	for i := range models {
		x, err := fromExecutionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = x
	}
	return result, nil
}

func (s *Store) ClaimExecution(ctx context.Context, execID id.ID, version int64, workerID string) (*dispatch.Execution, error) {
	t := now()
	res, err := s.sdb.NewUpdate((*executionModel)(nil)).
		Set("status = ?", string(dispatch.StatusProcessing)).
		Set("locked_by = ?", workerID).
		Set("locked_at = ?", t).
		Set("version = version + 1").
		Set("updated_at = ?", t).
		Where("id = ?", execID.String()).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Distinguish a missing row from a lost race.
		n, err := s.sdb.NewSelect((*executionModel)(nil)).
			Where("id = ?", execID.String()).
			Count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, dispatch.ErrNotFound
		}
		return nil, dispatch.ErrStaleVersion
	}

	return s.GetExecution(ctx, execID)
}

func (s *Store) UpdateExecution(ctx context.Context, x *dispatch.Execution) error {
	m := toExecutionModel(x)
	m.Version = x.Version + 1
	m.UpdatedAt = now()

	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Where("version = ?", x.Version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		n, err := s.sdb.NewSelect((*executionModel)(nil)).
			Where("id = ?", x.ID.String()).
			Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return dispatch.ErrNotFound
		}
		return dispatch.ErrStaleVersion
	}

	x.Version = m.Version
	return nil
}

func (s *Store) GetExecution(ctx context.Context, execID id.ID) (*dispatch.Execution, error) {
	m := new(executionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", execID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dispatch.ErrNotFound
		}
		return nil, err
	}
	return fromExecutionModel(m)
}

func (s *Store) ListExecutionsByEvent(ctx context.Context, eventID id.ID) ([]*dispatch.Execution, error) {
	var models []executionModel
	err := s.sdb.NewSelect(&models).
		Where("event_id = ?", eventID.String()).
		OrderExpr("priority ASC, handler ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*dispatch.Execution, len(models))
	for i := range models {
		x, err := fromExecutionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = x
	}
	return result, nil
}

func (s *Store) CountPendingExecutions(ctx context.Context) (int64, error) {
	count, err := s.sdb.NewSelect((*executionModel)(nil)).
		Where("status = ? OR status = ?", string(dispatch.StatusPending), string(dispatch.StatusProcessing)).
		Count(ctx)
	return count, err
}

// ==================== DLQ Store ====================

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel
	q := s.sdb.NewSelect(&models)

	if opts.Provider != "" {
		q = q.Where("provider = ?", opts.Provider)
	}
	if opts.Handler != "" {
		q = q.Where("handler = ?", opts.Handler)
	}
	if opts.From != nil {
		q = q.Where("failed_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("failed_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("failed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*dlq.Entry, len(models))
	for i := range models {
		entry, err := fromDLQEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = entry
	}
	return result, nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	m := new(dlqEntryModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", dlqID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dlq.ErrNotFound
		}
		return nil, err
	}
	return fromDLQEntryModel(m)
}

func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	entry, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}
	if entry.ReplayedAt != nil {
		return dlq.ErrAlreadyReplayed
	}

	t := now()
	x := executionFromEntry(entry, t)
	if _, err := s.sdb.NewInsert(toExecutionModel(x)).Exec(ctx); err != nil {
		return err
	}

	_, err = s.sdb.NewUpdate((*dlqEntryModel)(nil)).
		Set("replayed_at = ?", t).
		Set("updated_at = ?", t).
		Where("id = ?", dlqID.String()).
		Exec(ctx)
	return err
}

func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	var models []dlqEntryModel
	if err := s.sdb.NewSelect(&models).
		Where("failed_at >= ?", from).
		Where("failed_at <= ?", to).
		Where("replayed_at IS NULL").
		Scan(ctx); err != nil {
		return 0, err
	}

	var count int64
	for i := range models {
		entry, err := fromDLQEntryModel(&models[i])
		if err != nil {
			return count, err
		}

		t := now()
		x := executionFromEntry(entry, t)
		if _, err := s.sdb.NewInsert(toExecutionModel(x)).Exec(ctx); err != nil {
			return count, err
		}

		if _, err := s.sdb.NewUpdate((*dlqEntryModel)(nil)).
			Set("replayed_at = ?", t).
			Set("updated_at = ?", t).
			Where("id = ?", models[i].ID).
			Exec(ctx); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*dlqEntryModel)(nil)).
		Where("failed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.sdb.NewSelect((*dlqEntryModel)(nil)).
		Count(ctx)
	return count, err
}

// executionFromEntry rebuilds a pending execution from a DLQ entry's policy
// snapshot. Replays run on the worker pool regardless of the original
// binding's sync flag.
func executionFromEntry(e *dlq.Entry, t time.Time) *dispatch.Execution {
	return &dispatch.Execution{
		Entity:        entity.New(),
		ID:            id.NewExecutionID(),
		EventID:       e.EventID,
		Provider:      e.Provider,
		Handler:       e.Handler,
		Priority:      e.Priority,
		Async:         true,
		Status:        dispatch.StatusPending,
		MaxAttempts:   e.MaxAttempts,
		RetryDelays:   e.RetryDelays,
		Version:       1,
		NextAttemptAt: t,
	}
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
