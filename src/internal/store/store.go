// Package store persists compilation artifacts through gorm. The driver is
// chosen by config.StoreConfig: sqlite (default), postgres or mysql.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/VectorBits/Rubisol/src/internal/config"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var ErrNotFound = errors.New("artifact not found")

// Artifact is one compilation of one source file.
type Artifact struct {
	ID          uint   `gorm:"primaryKey"`
	Source      string `gorm:"size:512;index"`
	SourceHash  string `gorm:"size:66;index"`
	Fingerprint string `gorm:"size:128;index"` // config.Config.Fingerprint at compile time
	Contracts   string `gorm:"size:1024"`      // comma separated
	Code        string `gorm:"type:text"`
	ABI         string `gorm:"type:text"` // JSON object keyed by contract
	Warnings    string `gorm:"type:text"` // one per line
	Status      string `gorm:"size:16"`
	Error       string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (a *Artifact) WarningList() []string {
	if a.Warnings == "" {
		return nil
	}
	return strings.Split(a.Warnings, "\n")
}

func (a *Artifact) ContractList() []string {
	if a.Contracts == "" {
		return nil
	}
	return strings.Split(a.Contracts, ",")
}

type Store struct {
	DB *gorm.DB
}

// Open connects with the configured driver and migrates the schema.
func Open(cfg config.StoreConfig) (*Store, error) {
	dialector, err := dialect(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driverName(cfg), err)
	}
	if err := db.AutoMigrate(&Artifact{}); err != nil {
		return nil, fmt.Errorf("failed to migrate artifacts: %w", err)
	}
	return &Store{DB: db}, nil
}

func driverName(cfg config.StoreConfig) string {
	if cfg.Driver == "" {
		return "sqlite"
	}
	return cfg.Driver
}

func dialect(cfg config.StoreConfig) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = config.Default().Store.DSN
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("postgres store needs a dsn")
		}
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		if cfg.DSN == "" {
			return nil, errors.New("mysql store needs a dsn")
		}
		return mysql.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts a new artifact row.
func (s *Store) Save(ctx context.Context, a *Artifact) error {
	if a.SourceHash == "" {
		return errors.New("artifact without source hash")
	}
	if err := s.DB.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("save artifact %s: %w", a.Source, err)
	}
	return nil
}

// Latest returns the newest artifact for a source path.
func (s *Store) Latest(ctx context.Context, source string) (*Artifact, error) {
	return s.first(s.DB.WithContext(ctx).Where("source = ?", source))
}

// Cached returns the newest successful artifact compiled from identical source
// text under the same config fingerprint.
func (s *Store) Cached(ctx context.Context, hash, fingerprint string) (*Artifact, error) {
	return s.first(s.DB.WithContext(ctx).
		Where("source_hash = ? AND fingerprint = ? AND status = ?", hash, fingerprint, StatusOK))
}

func (s *Store) first(q *gorm.DB) (*Artifact, error) {
	var a Artifact
	err := q.Order("id DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact: %w", err)
	}
	return &a, nil
}

// List returns the newest artifacts, at most limit (0 means all).
func (s *Store) List(ctx context.Context, limit int) ([]Artifact, error) {
	q := s.DB.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Artifact
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

// Hash is the keccak256 of the source text, 0x-prefixed.
func Hash(src string) string {
	return crypto.Keccak256Hash([]byte(src)).Hex()
}
