package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type sessionRow struct {
	id, token, username, balance string
	createdAt, expiresAt         time.Time
}

// fakeDB understands the handful of statements SessionRepository issues.
type fakeDB struct {
	mu   sync.Mutex
	rows map[string]sessionRow
	err  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]sessionRow)}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.err != nil {
		return pgconn.CommandTag{}, db.err
	}

	switch {
	case strings.Contains(sql, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.Contains(sql, "INSERT INTO storefront_sessions"):
		db.rows[args[0].(string)] = sessionRow{
			id:        args[0].(string),
			token:     args[1].(string),
			username:  args[2].(string),
			balance:   args[3].(string),
			createdAt: args[4].(time.Time),
			expiresAt: args[5].(time.Time),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "WHERE expires_at <="):
		now := args[0].(time.Time)
		var n int
		for id, row := range db.rows {
			if !row.expiresAt.After(now) {
				delete(db.rows, id)
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	case strings.Contains(sql, "DELETE FROM storefront_sessions WHERE id"):
		id := args[0].(string)
		n := 0
		if _, ok := db.rows[id]; ok {
			delete(db.rows, id)
			n = 1
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	return pgconn.CommandTag{}, errors.New("fakeDB: unexpected statement")
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.err != nil {
		return fakeRow{err: db.err}
	}
	row, ok := db.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{row: row}
}

type fakeRow struct {
	row sessionRow
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.row.id
	*dest[1].(*string) = r.row.token
	*dest[2].(*string) = r.row.username
	*dest[3].(*string) = r.row.balance
	*dest[4].(*time.Time) = r.row.createdAt
	*dest[5].(*time.Time) = r.row.expiresAt
	return nil
}
