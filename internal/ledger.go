package internal

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const DefaultTTLDays = 7

// GlobalContextEntry is the permanent record of one processed commit.
type GlobalContextEntry struct {
	ID                  uint      `gorm:"column:id;primaryKey" json:"id"`
	CommitHash          string    `gorm:"column:commit_hash;uniqueIndex" json:"commit_hash"`
	CommitMessage       string    `gorm:"column:commit_message" json:"commit_message"`
	CommitDate          time.Time `gorm:"column:commit_date" json:"commit_date"`
	ContextSummary      string    `gorm:"column:context_summary" json:"context_summary"`
	FilesChanged        string    `gorm:"column:files_changed" json:"-"`
	LLMExtractedContext string    `gorm:"column:llm_extracted_context" json:"-"`
	CreatedAt           time.Time `gorm:"column:created_at" json:"created_at"`
}

func (GlobalContextEntry) TableName() string { return "global_context" }

// Files decodes the stored files_changed JSON array.
func (e *GlobalContextEntry) Files() []string {
	var files []string
	if err := json.Unmarshal([]byte(e.FilesChanged), &files); err != nil {
		return nil
	}
	return files
}

// Extracted decodes the stored model output.
func (e *GlobalContextEntry) Extracted() (*ExtractedContext, error) {
	var ec ExtractedContext
	if err := json.Unmarshal([]byte(e.LLMExtractedContext), &ec); err != nil {
		return nil, fmt.Errorf("decode extracted context for %s: %w", ShortHash(e.CommitHash), err)
	}
	return &ec, nil
}

// TTLMemoryEntry is short-lived working memory for a commit.
type TTLMemoryEntry struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	CommitHash string    `gorm:"column:commit_hash;index" json:"commit_hash"`
	Content    string    `gorm:"column:content" json:"content"`
	ExpiresAt  time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (TTLMemoryEntry) TableName() string { return "ttl_memory" }

type LedgerOptions struct {
	// ReadOnly opens the database without write access and skips
	// migrations, so status readers never contend with a running sync.
	ReadOnly bool
	TTLDays  int
	Now      func() time.Time
}

// Ledger is the durable record of processed commits backed by SQLite.
type Ledger struct {
	db       *gorm.DB
	ttlDays  int
	readOnly bool
	now      func() time.Time
}

// OpenLedger opens (and for writers creates and migrates) the database at path.
func OpenLedger(path string, opts LedgerOptions) (*Ledger, error) {
	if opts.ReadOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, &StorageError{Op: "open", Err: err}
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	db, err := gorm.Open(sqlite.Open(ledgerDSN(path, opts.ReadOnly)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	if !opts.ReadOnly {
		sqlDB.SetMaxOpenConns(1)
		if err := migrateUp(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, &StorageError{Op: "migrate", Err: err}
		}
	}

	l := &Ledger{
		db:       db,
		ttlDays:  DefaultTTLDays,
		readOnly: opts.ReadOnly,
		now:      time.Now,
	}
	if opts.TTLDays > 0 {
		l.ttlDays = opts.TTLDays
	}
	if opts.Now != nil {
		l.now = opts.Now
	}
	return l, nil
}

func ledgerDSN(path string, readOnly bool) string {
	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	if readOnly {
		// Journal mode is a write; the writer already switched the file to WAL.
		q.Set("mode", "ro")
	} else {
		q.Set("_journal_mode", "WAL")
	}
	return "file:" + path + "?" + q.Encode()
}

func migrateUp(sqlDB *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	drv, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// m.Close would close sqlDB, which the ledger keeps using.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return wrapStorage("close", err)
	}
	return wrapStorage("close", sqlDB.Close())
}

func (l *Ledger) ReadOnly() bool { return l.readOnly }

func (l *Ledger) SetTTLWindow(days int) {
	if days > 0 {
		l.ttlDays = days
	}
}

func (l *Ledger) TTLWindow() int { return l.ttlDays }

// ExpiryFrom returns the expiry instant for a TTL entry created at now.
func (l *Ledger) ExpiryFrom(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, l.ttlDays)
}

func (l *Ledger) AlreadyProcessed(ctx context.Context, hash string) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&GlobalContextEntry{}).
		Where("commit_hash = ?", hash).
		Count(&n).Error
	if err != nil {
		return false, wrapStorage("check commit", err)
	}
	return n > 0, nil
}

// ProcessedSet returns every stored commit hash.
func (l *Ledger) ProcessedSet(ctx context.Context) (map[string]struct{}, error) {
	var hashes []string
	err := l.db.WithContext(ctx).Model(&GlobalContextEntry{}).
		Pluck("commit_hash", &hashes).Error
	if err != nil {
		return nil, wrapStorage("list commits", err)
	}

	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set, nil
}

// LatestSummary returns the summary of the most recently stored entry.
func (l *Ledger) LatestSummary(ctx context.Context) (string, bool, error) {
	var e GlobalContextEntry
	err := l.db.WithContext(ctx).Order("id DESC").Limit(1).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapStorage("latest summary", err)
	}
	return e.ContextSummary, true, nil
}

// LastProcessed returns the most recently stored entry, or nil.
func (l *Ledger) LastProcessed(ctx context.Context) (*GlobalContextEntry, error) {
	var e GlobalContextEntry
	err := l.db.WithContext(ctx).Order("id DESC").Limit(1).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorage("last processed", err)
	}
	return &e, nil
}

// Store inserts a global entry. An existing row for the commit is never
// replaced.
func (l *Ledger) Store(ctx context.Context, entry *GlobalContextEntry) error {
	return l.insertGlobal(l.db.WithContext(ctx), entry)
}

// StoreWithTTL inserts the global entry and its TTL companion atomically.
func (l *Ledger) StoreWithTTL(ctx context.Context, entry *GlobalContextEntry, ttl *TTLMemoryEntry) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.insertGlobal(tx, entry); err != nil {
			return err
		}
		return l.insertTTL(tx, ttl)
	})
	return wrapStorage("store", err)
}

func (l *Ledger) StoreTTL(ctx context.Context, hash, content string, expiresAt time.Time) error {
	return l.insertTTL(l.db.WithContext(ctx), &TTLMemoryEntry{
		CommitHash: hash,
		Content:    content,
		ExpiresAt:  expiresAt,
	})
}

func (l *Ledger) insertGlobal(tx *gorm.DB, entry *GlobalContextEntry) error {
	if entry.FilesChanged == "" {
		entry.FilesChanged = "[]"
	}
	if entry.LLMExtractedContext == "" {
		entry.LLMExtractedContext = "{}"
	}
	entry.CommitDate = entry.CommitDate.UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	err := tx.Create(entry).Error
	if isUniqueViolation(err) {
		return &DuplicateCommitError{Hash: entry.CommitHash}
	}
	return wrapStorage("insert global context", err)
}

func (l *Ledger) insertTTL(tx *gorm.DB, entry *TTLMemoryEntry) error {
	entry.ExpiresAt = entry.ExpiresAt.UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return wrapStorage("insert ttl memory", tx.Create(entry).Error)
}

// PurgeExpired deletes TTL rows whose expiry is at or before now.
func (l *Ledger) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&TTLMemoryEntry{})
	if res.Error != nil {
		return 0, wrapStorage("purge ttl memory", res.Error)
	}
	return res.RowsAffected, nil
}

// ClearTTL deletes every TTL row. The global table is untouched.
func (l *Ledger) ClearTTL(ctx context.Context) (int64, error) {
	res := l.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&TTLMemoryEntry{})
	if res.Error != nil {
		return 0, wrapStorage("clear ttl memory", res.Error)
	}
	return res.RowsAffected, nil
}

// TTLEntries lists live TTL rows, newest first. Rows past their expiry are
// excluded even if no purge has run yet.
func (l *Ledger) TTLEntries(ctx context.Context, now time.Time) ([]TTLMemoryEntry, error) {
	var entries []TTLMemoryEntry
	err := l.db.WithContext(ctx).
		Where("expires_at > ?", now.UTC()).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, wrapStorage("list ttl memory", err)
	}
	return entries, nil
}

// Entries lists global entries newest commit first. A limit <= 0 lists all.
func (l *Ledger) Entries(ctx context.Context, limit int) ([]GlobalContextEntry, error) {
	q := l.db.WithContext(ctx).Order("commit_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []GlobalContextEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, wrapStorage("list global context", err)
	}
	return entries, nil
}

// EntriesSince lists entries whose commit date is at or after that of the
// stored commit hash, newest first. An unknown hash yields no entries.
func (l *Ledger) EntriesSince(ctx context.Context, hash string) ([]GlobalContextEntry, error) {
	var anchor GlobalContextEntry
	err := l.db.WithContext(ctx).
		Where("commit_hash = ? OR commit_hash LIKE ?", hash, hash+"%").
		Order("id ASC").
		Limit(1).
		Take(&anchor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorage("find anchor commit", err)
	}

	var entries []GlobalContextEntry
	err = l.db.WithContext(ctx).
		Where("commit_hash = ? OR commit_date >= ?", anchor.CommitHash, anchor.CommitDate).
		Order("commit_date DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, wrapStorage("list global context", err)
	}
	return entries, nil
}

func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.WithContext(ctx).Model(&GlobalContextEntry{}).Count(&n).Error; err != nil {
		return 0, wrapStorage("count global context", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
