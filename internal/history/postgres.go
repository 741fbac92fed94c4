package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

var migrations = []string{
	`create table if not exists grade_history (
		id text primary key,
		class_name text not null default '',
		created_at timestamptz not null,
		payload jsonb not null
	)`,
	`create index if not exists grade_history_class_idx on grade_history (class_name, created_at desc)`,
	`create table if not exists grade_rubrics (
		id text primary key,
		name text not null,
		answer_key_text text not null,
		created_at timestamptz not null
	)`,
	`create table if not exists grade_classes (
		name text primary key
	)`,
}

// PostgresRepository stores history in PostgreSQL. Items are kept as their
// encoded JSON so every schema version round-trips through DecodeItem.
type PostgresRepository struct {
	DB     *sql.DB
	Logger zerolog.Logger
}

// OpenPostgres connects to dsn, checks the connection and applies
// migrations.
func OpenPostgres(ctx context.Context, log zerolog.Logger, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	r := &PostgresRepository{DB: db, Logger: log.With().Str("component", "history").Logger()}
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Migrate creates the tables if they are missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := r.DB.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) SaveItem(ctx context.Context, it Item) error {
	payload, err := EncodeItem(it)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		insert into grade_history (id, class_name, created_at, payload)
		values ($1, $2, $3, $4)
		on conflict (id) do update
		set class_name = excluded.class_name,
		    created_at = excluded.created_at,
		    payload = excluded.payload
	`, it.ID, NormalizeClass(it.ClassName), it.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("failed to save history item: %w", err)
	}

	if name := NormalizeClass(it.ClassName); name != "" {
		if _, err := tx.ExecContext(ctx, `insert into grade_classes (name) values ($1) on conflict (name) do nothing`, name); err != nil {
			return fmt.Errorf("failed to save class: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PostgresRepository) Items(ctx context.Context, className string) ([]Item, error) {
	className = NormalizeClass(className)
	rows, err := r.DB.QueryContext(ctx, `
		select payload from grade_history
		where $1 = '' or class_name = $1
		order by created_at desc
	`, className)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		it, err := DecodeItem(payload)
		if err != nil {
			r.Logger.Warn().Err(err).Str("id", recordID(payload)).Msg("skipping unreadable history item")
			continue
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) Item(ctx context.Context, id string) (Item, error) {
	var payload []byte
	err := r.DB.QueryRowContext(ctx, `select payload from grade_history where id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}
	return DecodeItem(payload)
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, id string) error {
	return r.deleteByID(ctx, `delete from grade_history where id = $1`, id)
}

func (r *PostgresRepository) SaveRubric(ctx context.Context, rb Rubric) error {
	_, err := r.DB.ExecContext(ctx, `
		insert into grade_rubrics (id, name, answer_key_text, created_at)
		values ($1, $2, $3, $4)
		on conflict (id) do update
		set name = excluded.name,
		    answer_key_text = excluded.answer_key_text
	`, rb.ID, rb.Name, rb.AnswerKeyText, rb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rubric: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Rubrics(ctx context.Context) ([]Rubric, error) {
	rows, err := r.DB.QueryContext(ctx, `
		select id, name, answer_key_text, created_at
		from grade_rubrics
		order by created_at desc
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rubrics: %w", err)
	}
	defer rows.Close()

	out := []Rubric{}
	for rows.Next() {
		var rb Rubric
		if err := rows.Scan(&rb.ID, &rb.Name, &rb.AnswerKeyText, &rb.CreatedAt); err != nil {
			return nil, err
		}
		rb.CreatedAt = rb.CreatedAt.UTC()
		out = append(out, rb)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DeleteRubric(ctx context.Context, id string) error {
	return r.deleteByID(ctx, `delete from grade_rubrics where id = $1`, id)
}

func (r *PostgresRepository) Classes(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `select name from grade_classes order by name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) AddClass(ctx context.Context, name string) error {
	name = NormalizeClass(name)
	if name == "" {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `insert into grade_classes (name) values ($1) on conflict (name) do nothing`, name)
	return err
}

func (r *PostgresRepository) Close() error {
	return r.DB.Close()
}

func (r *PostgresRepository) deleteByID(ctx context.Context, query, id string) error {
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
