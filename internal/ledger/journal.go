package ledger

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS activity (
	id         TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	price      REAL NOT NULL,
	timestamp  INTEGER NOT NULL,
	order_type TEXT NOT NULL
);
`

// Journal persists activity events to SQLite so trade history survives the
// daily ledger flush and process restarts.
type Journal struct {
	db *sql.DB
}

func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(e Event) error {
	_, err := j.db.Exec(`
		INSERT INTO activity (id, symbol, price, timestamp, order_type)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Symbol, e.Price, e.Timestamp.UnixNano(), string(e.OrderType),
	)
	return err
}

// EventsSince returns journaled events at or after the given time, oldest
// first.
func (j *Journal) EventsSince(since time.Time) ([]Event, error) {
	rows, err := j.db.Query(`
		SELECT id, symbol, price, timestamp, order_type
		FROM activity
		WHERE timestamp >= ?
		ORDER BY timestamp ASC`,
		since.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var orderType string
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Price, &ts, &orderType); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.OrderType = OrderType(orderType)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
