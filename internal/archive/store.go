package archive

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tiffinbot/core/logger"
	"github.com/m3rciful/tiffinbot/internal/order"
	"github.com/m3rciful/tiffinbot/internal/poll"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrations returns the schema, one directory per database driver.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Record is one archived poll.
type Record struct {
	ID       string
	Scope    string
	ClosedAt time.Time
	Summary  poll.Summary
}

// Store writes closed poll summaries to SQL. Queries are written with '?'
// placeholders and rebound for the connected driver.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wraps an open connection whose schema is migrated.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type pollRow struct {
	ID           string `db:"id"`
	Scope        string `db:"scope"`
	Name         string `db:"name"`
	OwnerID      string `db:"owner_id"`
	OwnerName    string `db:"owner_name"`
	Menu         string `db:"menu"`
	ClosedAt     int64  `db:"closed_at"`
	Participants int    `db:"participants"`
}

type orderRow struct {
	PollID          string `db:"poll_id"`
	Position        int    `db:"position"`
	ParticipantID   string `db:"participant_id"`
	ParticipantName string `db:"participant_name"`
	Category        string `db:"category"`
	Quantity        int64  `db:"quantity"`
}

// Archive stores sum in one transaction.
func (s *Store) Archive(ctx context.Context, scope string, sum poll.Summary) error {
	_, err := s.archive(ctx, scope, sum)
	return err
}

func (s *Store) archive(ctx context.Context, scope string, sum poll.Summary) (id string, retErr error) {
	start := time.Now()
	id = uuid.NewString()
	menu := make([]string, 0, len(sum.Menu))
	for _, c := range sum.Menu {
		menu = append(menu, string(c))
	}
	row := pollRow{
		ID:           id,
		Scope:        scope,
		Name:         sum.Poll,
		OwnerID:      sum.Owner.ID,
		OwnerName:    sum.Owner.Name,
		Menu:         strings.Join(menu, ","),
		ClosedAt:     s.now().UnixMilli(),
		Participants: len(sum.Entries),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("archive: begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.NamedExecContext(ctx, `INSERT INTO polls
		(id, scope, name, owner_id, owner_name, menu, closed_at, participants)
		VALUES (:id, :scope, :name, :owner_id, :owner_name, :menu, :closed_at, :participants)`, row); err != nil {
		return "", fmt.Errorf("archive: insert poll: %w", err)
	}

	insertOrder := tx.Rebind(`INSERT INTO poll_orders
		(poll_id, position, participant_id, participant_name, category, quantity)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for pos, e := range sum.Entries {
		for _, c := range sum.Menu {
			qty := e.Order.Get(c)
			if qty == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, insertOrder, id, pos, e.Participant.ID, e.Participant.Name, string(c), qty); err != nil {
				return "", fmt.Errorf("archive: insert order: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("archive: commit: %w", err)
	}
	logger.Info(ctx, "archive", "archive.write",
		slog.String("scope", scope),
		slog.String("poll", sum.Poll),
		slog.String("id", id),
		slog.Int("orders", len(sum.Entries)),
		slog.Duration("duration", logger.Took(start)),
	)
	return id, nil
}

// Recent returns up to limit archived polls of a scope, newest first.
func (s *Store) Recent(ctx context.Context, scope string, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, errors.New("archive: limit must be positive")
	}
	var polls []pollRow
	q := s.db.Rebind(`SELECT id, scope, name, owner_id, owner_name, menu, closed_at, participants
		FROM polls WHERE scope = ? ORDER BY closed_at DESC, id LIMIT ?`)
	if err := s.db.SelectContext(ctx, &polls, q, scope, limit); err != nil {
		return nil, fmt.Errorf("archive: select polls: %w", err)
	}
	if len(polls) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(polls))
	for _, p := range polls {
		ids = append(ids, p.ID)
	}
	query, args, err := sqlx.In(`SELECT poll_id, position, participant_id, participant_name, category, quantity
		FROM poll_orders WHERE poll_id IN (?) ORDER BY poll_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("archive: build order query: %w", err)
	}
	var orders []orderRow
	if err := s.db.SelectContext(ctx, &orders, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("archive: select orders: %w", err)
	}
	byPoll := make(map[string][]orderRow, len(polls))
	for _, o := range orders {
		byPoll[o.PollID] = append(byPoll[o.PollID], o)
	}

	out := make([]Record, 0, len(polls))
	for _, p := range polls {
		out = append(out, Record{
			ID:       p.ID,
			Scope:    p.Scope,
			ClosedAt: time.UnixMilli(p.ClosedAt),
			Summary:  rebuild(p, byPoll[p.ID]),
		})
	}
	return out, nil
}

// rebuild reassembles a summary from rows sorted by position.
func rebuild(p pollRow, rows []orderRow) poll.Summary {
	menu := order.NewMenu(strings.Split(p.Menu, ",")...)
	var entries []poll.Entry
	last := -1
	for _, r := range rows {
		if r.Position != last {
			entries = append(entries, poll.Entry{
				Participant: poll.Participant{ID: r.ParticipantID, Name: r.ParticipantName},
				Order:       order.Order{},
			})
			last = r.Position
		}
		entries[len(entries)-1].Order.Set(order.Category(r.Category), r.Quantity)
	}
	owner := poll.Participant{ID: p.OwnerID, Name: p.OwnerName}
	return poll.Summarize(p.Name, owner, menu, entries)
}
