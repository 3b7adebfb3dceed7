package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"iscevents/internal/model"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrAttendeeNotFound = errors.New("attendee not found")
)

type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, id string, fields map[string]any) (int64, error)
	DeleteEventCascadeTx(ctx context.Context, id string) (int64, error)
	ListUpcomingEvents(ctx context.Context, from time.Time, limit, offset int) ([]model.Event, error)
	SearchUpcomingEvents(ctx context.Context, query string, from time.Time, limit, offset int) ([]model.Event, error)

	CreatePrice(ctx context.Context, p *model.Price) error
	PricesByEvent(ctx context.Context, eventID string) ([]model.Price, error)

	CreateGallery(ctx context.Context, g *model.Gallery) error
	GalleriesByEvent(ctx context.Context, eventID string) ([]model.Gallery, error)

	CreateAttendee(ctx context.Context, a *model.Attendee) error
	GetAttendeeByID(ctx context.Context, id string) (*model.Attendee, error)
	AttendeesByEvent(ctx context.Context, eventID string) ([]model.Attendee, error)

	MigrateUp(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

// extraJSON marshals the extension map for a jsonb column; empty maps are
// stored as NULL.
func extraJSON(extra map[string]string) (any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extra fields: %w", err)
	}
	return b, nil
}

func scanExtra(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var extra map[string]string
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extra fields: %w", err)
	}
	return extra, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) error {
	query := `
		INSERT INTO events (id, user_id, title, description, image, location, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	row := r.db.QueryRowContext(ctx, query,
		e.ID, e.UserID, e.Title, e.Description, e.Image, e.Location, e.StartDate, e.EndDate,
	)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *repository) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	query := `
		SELECT id, user_id, title, description, image, location,
		       start_date, end_date, created_at, updated_at
		FROM events WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// updatableEventColumns is the whitelist for partial updates.
var updatableEventColumns = map[string]struct{}{
	"title":       {},
	"description": {},
	"image":       {},
	"location":    {},
	"start_date":  {},
	"end_date":    {},
}

// UpdateEvent applies a field-by-field partial update and reports the number
// of affected rows; unknown columns are rejected.
func (r *repository) UpdateEvent(ctx context.Context, id string, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}

	set := "updated_at = NOW()"
	args := []any{id}
	for column, value := range fields {
		if _, ok := updatableEventColumns[column]; !ok {
			return 0, fmt.Errorf("column %q is not updatable", column)
		}
		args = append(args, value)
		set += fmt.Sprintf(", %s = $%d", column, len(args))
	}

	query := fmt.Sprintf("UPDATE events SET %s WHERE id = $1", set)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// DeleteEventCascadeTx removes the event together with its prices and gallery
// items in one transaction. The reported count covers the event row only.
func (r *repository) DeleteEventCascadeTx(ctx context.Context, id string) (int64, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM prices WHERE event_id = $1`, id); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to delete event prices: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM galleries WHERE event_id = $1`, id); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to delete event gallery: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affected, nil
}

func (r *repository) ListUpcomingEvents(ctx context.Context, from time.Time, limit, offset int) ([]model.Event, error) {
	query := `
		SELECT id, user_id, title, description, image, location,
		       start_date, end_date, created_at, updated_at
		FROM events
		WHERE start_date >= $1
		ORDER BY start_date ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, from, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *repository) SearchUpcomingEvents(ctx context.Context, search string, from time.Time, limit, offset int) ([]model.Event, error) {
	query := `
		SELECT id, user_id, title, description, image, location,
		       start_date, end_date, created_at, updated_at
		FROM events
		WHERE start_date >= $1
		  AND (title ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		ORDER BY start_date ASC, id ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, from, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	var endDate sql.NullTime
	if err := row.Scan(
		&e.ID, &e.UserID, &e.Title, &e.Description, &e.Image, &e.Location,
		&e.StartDate, &endDate, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if endDate.Valid {
		t := endDate.Time
		e.EndDate = &t
	}
	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

func (r *repository) CreatePrice(ctx context.Context, p *model.Price) error {
	extra, err := extraJSON(p.Extra)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO prices (id, event_id, name, amount, currency, order_amount, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	row := r.db.QueryRowContext(ctx, query,
		p.ID, p.EventID, p.Name, p.Amount, p.Currency, p.OrderAmount, extra,
	)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert price: %w", err)
	}
	return nil
}

func (r *repository) PricesByEvent(ctx context.Context, eventID string) ([]model.Price, error) {
	query := `
		SELECT id, event_id, name, amount, currency, order_amount, extra, created_at
		FROM prices
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	defer rows.Close()

	var prices []model.Price
	for rows.Next() {
		var p model.Price
		var raw []byte
		if err := rows.Scan(
			&p.ID, &p.EventID, &p.Name, &p.Amount, &p.Currency, &p.OrderAmount, &raw, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		if p.Extra, err = scanExtra(raw); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prices: %w", err)
	}
	return prices, nil
}

func (r *repository) CreateGallery(ctx context.Context, g *model.Gallery) error {
	extra, err := extraJSON(g.Extra)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO galleries (id, event_id, url, caption, extra)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	row := r.db.QueryRowContext(ctx, query, g.ID, g.EventID, g.URL, g.Caption, extra)
	if err := row.Scan(&g.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert gallery item: %w", err)
	}
	return nil
}

func (r *repository) GalleriesByEvent(ctx context.Context, eventID string) ([]model.Gallery, error) {
	query := `
		SELECT id, event_id, url, caption, extra, created_at
		FROM galleries
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get gallery: %w", err)
	}
	defer rows.Close()

	var items []model.Gallery
	for rows.Next() {
		var g model.Gallery
		var raw []byte
		if err := rows.Scan(&g.ID, &g.EventID, &g.URL, &g.Caption, &raw, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gallery item: %w", err)
		}
		if g.Extra, err = scanExtra(raw); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gallery: %w", err)
	}
	return items, nil
}

func (r *repository) CreateAttendee(ctx context.Context, a *model.Attendee) error {
	query := `
		INSERT INTO attendees (id, event_id, name, email, phone, price_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	row := r.db.QueryRowContext(ctx, query, a.ID, a.EventID, a.Name, a.Email, a.Phone, a.PriceID)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert attendee: %w", err)
	}
	return nil
}

func (r *repository) GetAttendeeByID(ctx context.Context, id string) (*model.Attendee, error) {
	query := `
		SELECT id, event_id, name, email, phone, price_id, created_at
		FROM attendees WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var a model.Attendee
	if err := row.Scan(&a.ID, &a.EventID, &a.Name, &a.Email, &a.Phone, &a.PriceID, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("failed to get attendee: %w", err)
	}
	return &a, nil
}

func (r *repository) AttendeesByEvent(ctx context.Context, eventID string) ([]model.Attendee, error) {
	query := `
		SELECT id, event_id, name, email, phone, price_id, created_at
		FROM attendees
		WHERE event_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendees: %w", err)
	}
	defer rows.Close()

	var attendees []model.Attendee
	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.ID, &a.EventID, &a.Name, &a.Email, &a.Phone, &a.PriceID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendees: %w", err)
	}
	return attendees, nil
}
