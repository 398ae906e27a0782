// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb stores committed registry events in sqlite and serves
// filtered queries over them. Rows keep the commit order via a monotonic
// sequence, so paging is stable across inserts.
package eventdb

import (
	"context"
	"database/sql"

	"github.com/holiman/uint256"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/vigil"
)

const eventTableSchema = `
create table if not exists event (
	seq integer primary key,
	block decimal(32,0),
	kind text,
	operator blob(20),
	challenger blob(20),
	signingKey blob(20),
	amount blob(32),
	detail text
);

CREATE INDEX if not exists blockIndex on event(block);
CREATE INDEX if not exists kindIndex on event(kind);
CREATE INDEX if not exists operatorIndex on event(operator);
`

// Record is a stored event with its commit sequence.
type Record struct {
	Sequence uint64 `json:"sequence"`
	registry.Event
}

// Order of query results.
type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range bounds a query by block, inclusive on both ends.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Options pages a query.
type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Criteria is one OR-group of column matches.
type Criteria struct {
	Kind       *registry.Kind `json:"kind"`
	Operator   *vigil.Address `json:"operator"`
	Challenger *vigil.Address `json:"challenger"`
}

// Filter selects events.
type Filter struct {
	CriteriaSet []*Criteria `json:"criteriaSet"`
	Range       *Range      `json:"range"`
	Options     *Options    `json:"options"`
	Order       Order       `json:"order"` // default asc
}

// EventDB is an event store backed by sqlite.
type EventDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New creates or opens the event db at the given path.
func New(path string) (*EventDB, error) {
	return open(path, false)
}

// NewMem creates an event db in ram.
func NewMem() (*EventDB, error) {
	return open(":memory:", true)
}

func open(path string, mem bool) (*EventDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open event db")
	}
	if mem {
		// a single connection pins the in-memory database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(eventTableSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create event schema")
	}
	driverVer, _, _ := sqlite3.Version()
	return &EventDB{
		path:          path,
		db:            db,
		driverVersion: driverVer,
	}, nil
}

// Close closes the event db.
func (db *EventDB) Close() error {
	return db.db.Close()
}

// Path returns the db path.
func (db *EventDB) Path() string {
	return db.path
}

func addrBlob(a *vigil.Address) []byte {
	if a == nil {
		return nil
	}
	return a.Bytes()
}

func amountBlob(w *uint256.Int) []byte {
	if w == nil {
		return nil
	}
	b := w.Bytes32()
	return b[:]
}

// Append stores the events in one transaction, preserving their order.
func (db *EventDB) Append(ctx context.Context, events []*registry.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin append")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO event(block, kind, operator, challenger, signingKey, amount, detail) VALUES(?,?,?,?,?,?,?)")
	if err != nil {
		return errors.Wrap(err, "prepare append")
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err = stmt.ExecContext(ctx,
			ev.Block,
			string(ev.Kind),
			addrBlob(ev.Operator),
			addrBlob(ev.Challenger),
			addrBlob(ev.Key),
			amountBlob(ev.Amount),
			ev.Detail,
		); err != nil {
			return errors.Wrap(err, "insert event")
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit append")
	}
	metricWriteCounter().Add(int64(len(events)))
	return nil
}

// Filter returns the events matching the filter. A nil filter returns
// everything in commit order.
func (db *EventDB) Filter(ctx context.Context, filter *Filter) ([]*Record, error) {
	const cols = "SELECT seq, block, kind, operator, challenger, signingKey, amount, detail FROM event"
	if filter == nil {
		return db.query(ctx, cols+" ORDER BY seq ASC")
	}
	metricsHandleFilter(filter)

	var args []interface{}
	stmt := cols + " WHERE 1"
	if filter.Range != nil {
		args = append(args, filter.Range.From)
		stmt += " AND block >= ? "
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND block <= ? "
		}
	}
	for i, criteria := range filter.CriteriaSet {
		if i == 0 {
			stmt += " AND ( 1"
		} else {
			stmt += " OR ( 1"
		}
		if criteria.Kind != nil {
			args = append(args, string(*criteria.Kind))
			stmt += " AND kind = ? "
		}
		if criteria.Operator != nil {
			args = append(args, criteria.Operator.Bytes())
			stmt += " AND operator = ? "
		}
		if criteria.Challenger != nil {
			args = append(args, criteria.Challenger.Bytes())
			stmt += " AND challenger = ? "
		}
		stmt += ")"
	}

	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC "
	} else {
		stmt += " ORDER BY seq ASC "
	}

	if filter.Options != nil {
		stmt += " limit ?, ? "
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.query(ctx, stmt, args...)
}

func (db *EventDB) query(ctx context.Context, stmt string, args ...interface{}) ([]*Record, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq        uint64
			block      uint64
			kind       string
			operator   []byte
			challenger []byte
			signingKey []byte
			amount     []byte
			detail     string
		)
		if err := rows.Scan(
			&seq,
			&block,
			&kind,
			&operator,
			&challenger,
			&signingKey,
			&amount,
			&detail,
		); err != nil {
			return nil, err
		}
		rec := &Record{
			Sequence: seq,
			Event: registry.Event{
				Block:  block,
				Kind:   registry.Kind(kind),
				Detail: detail,
			},
		}
		if len(operator) > 0 {
			a := vigil.BytesToAddress(operator)
			rec.Operator = &a
		}
		if len(challenger) > 0 {
			a := vigil.BytesToAddress(challenger)
			rec.Challenger = &a
		}
		if len(signingKey) > 0 {
			a := vigil.BytesToAddress(signingKey)
			rec.Key = &a
		}
		if len(amount) > 0 {
			rec.Amount = new(uint256.Int).SetBytes(amount)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Newest returns the highest stored sequence, or false when empty.
func (db *EventDB) Newest(ctx context.Context) (uint64, bool, error) {
	row := db.db.QueryRowContext(ctx, "SELECT seq FROM event ORDER BY seq DESC LIMIT 1")
	var seq uint64
	if err := row.Scan(&seq); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return seq, true, nil
}
