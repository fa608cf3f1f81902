package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dexwatch/internal/model"
)

// Journal persists executed trades to SQLite for analysis and audit.
// It is an audit artifact only: the monitoring loop never reads it back to
// make decisions.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		tx_hash     TEXT NOT NULL,
		action      TEXT NOT NULL,
		token       TEXT NOT NULL,
		address     TEXT NOT NULL,
		amount      REAL NOT NULL,
		price       REAL NOT NULL,
		total_value REAL NOT NULL,
		gas_price   TEXT,
		executed_at DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_token ON trades(token);
	CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// Record persists an executed trade.
func (j *Journal) Record(trade model.Trade, txHash string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO trades (tx_hash, action, token, address, amount, price, total_value, gas_price, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txHash,
		string(trade.Type),
		trade.Token,
		trade.Address,
		trade.Amount,
		trade.Price,
		trade.TotalValue,
		trade.GasPrice,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// TradeRecord represents a row from the trades table.
type TradeRecord struct {
	ID         int64   `json:"id"`
	TxHash     string  `json:"tx_hash"`
	Action     string  `json:"action"`
	Token      string  `json:"token"`
	Address    string  `json:"address"`
	Amount     float64 `json:"amount"`
	Price      float64 `json:"price"`
	TotalValue float64 `json:"total_value"`
	GasPrice   string  `json:"gas_price"`
	ExecutedAt string  `json:"executed_at"`
}

// Trades returns the last N executed trades, newest first.
func (j *Journal) Trades(limit int) ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, tx_hash, action, token, address, amount, price, total_value, gas_price, executed_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.TxHash, &t.Action, &t.Token, &t.Address,
			&t.Amount, &t.Price, &t.TotalValue, &t.GasPrice, &t.ExecutedAt); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
