// Package store persists inbound message copies and outbound delivery
// outcomes in SQLite. There is one inbound and one outbound table per
// channel kind; inbound tables carry a unique constraint on the platform
// message id, outbound tables carry the delivery status machine
// (pending/success/failed) with error detail.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/axt-team/axtgate/pkg/event"
)

// ErrDuplicateMessage means an inbound write hit the unique constraint on
// the platform message id. Callers log it and keep going.
var ErrDuplicateMessage = errors.New("message id already recorded")

// Channel names a table pair. The values double as the status-update
// routing key, so they must stay stable.
type Channel string

const (
	ChannelGroup   Channel = "group"
	ChannelUser    Channel = "user"
	ChannelGuild   Channel = "channel"
	ChannelGuildDM Channel = "dms"
)

// Status values of an outbound record.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// OutboundRecord is one attempted delivery.
type OutboundRecord struct {
	ID        int64   `json:"id"`
	Channel   Channel `json:"channel"`
	TargetID  string  `json:"target_id"`
	GuildID   string  `json:"guild_id,omitempty"`
	Message   string  `json:"message"`
	MessageID string  `json:"message_id,omitempty"`
	Status    string  `json:"status"`
	ErrorInfo string  `json:"error_info,omitempty"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS group_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		message_id TEXT NOT NULL UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_group_messages_group ON group_messages(group_id)`,
	`CREATE TABLE IF NOT EXISTS user_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		message_id TEXT NOT NULL UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_messages_user ON user_messages(user_id)`,
	`CREATE TABLE IF NOT EXISTS channel_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		channel_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		message_id TEXT NOT NULL UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_channel_messages_channel ON channel_messages(channel_id)`,
	`CREATE TABLE IF NOT EXISTS channel_private_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		message_id TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sent_group_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		group_id TEXT NOT NULL,
		message TEXT NOT NULL,
		message_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		error_info TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sent_user_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		message_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		error_info TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sent_channel_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		channel_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		message TEXT NOT NULL,
		message_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		error_info TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sent_channel_private_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		guild_id TEXT NOT NULL,
		message TEXT NOT NULL,
		message_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		error_info TEXT
	)`,
}

// Open creates or opens the message database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return openDSN(filepath.Join(dir, "messages.db"))
}

// OpenMemory opens a private in-memory database. Test helper. The
// connection pool is pinned to one connection, so the database survives
// for the Store's lifetime.
func OpenMemory() (*Store, error) {
	return openDSN(":memory:")
}

func openDSN(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps SQLite happy under the worker pool.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// SaveInbound records a classified message event in the table for its
// channel kind. Non-message kinds are a no-op. A duplicate platform
// message id returns ErrDuplicateMessage.
func (s *Store) SaveInbound(ev *event.Event) error {
	var err error
	switch ev.Kind {
	case event.KindGroupMessage:
		_, err = s.db.Exec(
			`INSERT INTO group_messages (group_id, user_id, message, message_id) VALUES (?, ?, ?, ?)`,
			ev.Target.GroupID, ev.SenderID, ev.Content, ev.MsgID)
	case event.KindPrivateMessage:
		_, err = s.db.Exec(
			`INSERT INTO user_messages (user_id, message, message_id) VALUES (?, ?, ?)`,
			ev.SenderID, ev.Content, ev.MsgID)
	case event.KindGuildMessage:
		_, err = s.db.Exec(
			`INSERT INTO channel_messages (channel_id, guild_id, user_id, message, message_id) VALUES (?, ?, ?, ?, ?)`,
			ev.Target.ChannelID, ev.Target.GuildID, ev.SenderID, ev.Content, ev.MsgID)
	case event.KindDirectMessage:
		_, err = s.db.Exec(
			`INSERT INTO channel_private_messages (guild_id, user_id, message, message_id) VALUES (?, ?, ?, ?)`,
			ev.Target.GuildID, ev.SenderID, ev.Content, ev.MsgID)
	default:
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateMessage, ev.MsgID)
	}
	return err
}

type outboundTable struct {
	table     string
	targetCol string
	hasGuild  bool
}

var outboundTables = map[Channel]outboundTable{
	ChannelGroup:   {table: "sent_group_messages", targetCol: "group_id"},
	ChannelUser:    {table: "sent_user_messages", targetCol: "user_id"},
	ChannelGuild:   {table: "sent_channel_messages", targetCol: "channel_id", hasGuild: true},
	ChannelGuildDM: {table: "sent_channel_private_messages", targetCol: "guild_id"},
}

// CreateOutbound inserts a pending delivery record and returns its id.
// guildID is only used for the guild-channel kind.
func (s *Store) CreateOutbound(ch Channel, targetID, guildID, message string) (int64, error) {
	t, ok := outboundTables[ch]
	if !ok {
		return 0, fmt.Errorf("unknown outbound channel %q", ch)
	}

	var res sql.Result
	var err error
	if t.hasGuild {
		res, err = s.db.Exec(
			fmt.Sprintf(`INSERT INTO %s (%s, guild_id, message, status) VALUES (?, ?, ?, ?)`, t.table, t.targetCol),
			targetID, guildID, message, StatusPending)
	} else {
		res, err = s.db.Exec(
			fmt.Sprintf(`INSERT INTO %s (%s, message, status) VALUES (?, ?, ?)`, t.table, t.targetCol),
			targetID, message, StatusPending)
	}
	if err != nil {
		return 0, fmt.Errorf("create outbound record: %w", err)
	}
	return res.LastInsertId()
}

// MarkOutboundSuccess transitions a pending record to success with the
// platform-assigned message id.
func (s *Store) MarkOutboundSuccess(ch Channel, id int64, messageID string) error {
	return s.markOutbound(ch, id, StatusSuccess, messageID, "")
}

// MarkOutboundFailed transitions a pending record to failed, capturing
// the endpoint's response verbatim.
func (s *Store) MarkOutboundFailed(ch Channel, id int64, errorInfo string) error {
	return s.markOutbound(ch, id, StatusFailed, "", errorInfo)
}

func (s *Store) markOutbound(ch Channel, id int64, status, messageID, errorInfo string) error {
	t, ok := outboundTables[ch]
	if !ok {
		return fmt.Errorf("unknown outbound channel %q", ch)
	}
	_, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET status = ?, message_id = NULLIF(?, ''), error_info = NULLIF(?, '') WHERE id = ?`, t.table),
		status, messageID, errorInfo, id)
	if err != nil {
		return fmt.Errorf("update outbound record: %w", err)
	}
	return nil
}

// FailedOutbound returns the most recent failed deliveries for a channel
// kind, newest first. Feed for retry-on-restart tooling.
func (s *Store) FailedOutbound(ch Channel, limit int) ([]OutboundRecord, error) {
	t, ok := outboundTables[ch]
	if !ok {
		return nil, fmt.Errorf("unknown outbound channel %q", ch)
	}

	cols := fmt.Sprintf(`id, %s, message, COALESCE(message_id, ''), status, COALESCE(error_info, '')`, t.targetCol)
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM %s WHERE status = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, cols, t.table),
		StatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed outbound: %w", err)
	}
	defer rows.Close()

	var out []OutboundRecord
	for rows.Next() {
		rec := OutboundRecord{Channel: ch}
		if err := rows.Scan(&rec.ID, &rec.TargetID, &rec.Message, &rec.MessageID, &rec.Status, &rec.ErrorInfo); err != nil {
			return nil, fmt.Errorf("scan failed outbound: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetOutbound loads one outbound record by id. Test and tooling helper.
func (s *Store) GetOutbound(ch Channel, id int64) (*OutboundRecord, error) {
	t, ok := outboundTables[ch]
	if !ok {
		return nil, fmt.Errorf("unknown outbound channel %q", ch)
	}
	rec := OutboundRecord{Channel: ch}
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT id, %s, message, COALESCE(message_id, ''), status, COALESCE(error_info, '') FROM %s WHERE id = ?`, t.targetCol, t.table),
		id)
	if err := row.Scan(&rec.ID, &rec.TargetID, &rec.Message, &rec.MessageID, &rec.Status, &rec.ErrorInfo); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ChannelCounts is one channel kind's received/sent tallies.
type ChannelCounts struct {
	Received int `json:"received"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

var inboundTables = map[Channel]string{
	ChannelGroup:   "group_messages",
	ChannelUser:    "user_messages",
	ChannelGuild:   "channel_messages",
	ChannelGuildDM: "channel_private_messages",
}

// Counts tallies received, sent, and failed messages per channel kind.
func (s *Store) Counts() (map[Channel]ChannelCounts, error) {
	out := make(map[Channel]ChannelCounts, len(inboundTables))
	for ch, inTable := range inboundTables {
		var c ChannelCounts
		if err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, inTable)).Scan(&c.Received); err != nil {
			return nil, fmt.Errorf("count %s: %w", inTable, err)
		}
		outTable := outboundTables[ch].table
		if err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, outTable)).Scan(&c.Sent); err != nil {
			return nil, fmt.Errorf("count %s: %w", outTable, err)
		}
		if err := s.db.QueryRow(
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = ?`, outTable), StatusFailed).Scan(&c.Failed); err != nil {
			return nil, fmt.Errorf("count failed %s: %w", outTable, err)
		}
		out[ch] = c
	}
	return out, nil
}
