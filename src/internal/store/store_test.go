package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/VectorBits/Rubisol/src/internal/config"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "db", "rubisol.db")})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndQuery(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	src := "class A\nend\n"
	fp := config.Default().Fingerprint()
	legacy := config.Default()
	legacy.TargetVersion = "0.7.6"
	rows := []*Artifact{
		{Source: "a.rb", SourceHash: Hash(src), Fingerprint: fp, Status: StatusOK, Code: "contract A {}", Contracts: "A", Warnings: "w1\nw2"},
		{Source: "a.rb", SourceHash: Hash("broken"), Fingerprint: fp, Status: StatusFailed, Error: "parse error"},
		{Source: "b.rb", SourceHash: Hash(src), Fingerprint: fp, Status: StatusOK, Code: "contract A {}", Contracts: "A"},
		{Source: "c.rb", SourceHash: Hash(src), Fingerprint: legacy.Fingerprint(), Status: StatusOK, Code: "contract A {}", Contracts: "A"},
	}
	for i, r := range rows {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("rows[%d] - Save failed: %v", i, err)
		}
		if r.ID == 0 {
			t.Fatalf("rows[%d] - id not assigned", i)
		}
	}

	latest, err := s.Latest(ctx, "a.rb")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Status != StatusFailed || latest.Error != "parse error" {
		t.Fatalf("latest wrong, got=%+v", latest)
	}

	cached, err := s.Cached(ctx, Hash(src), fp)
	if err != nil {
		t.Fatalf("Cached failed: %v", err)
	}
	if cached.Source != "b.rb" {
		t.Fatalf("expected newest ok artifact for the fingerprint, got=%q", cached.Source)
	}
	if cached, err := s.Cached(ctx, Hash(src), legacy.Fingerprint()); err != nil || cached.Source != "c.rb" {
		t.Fatalf("expected c.rb for the 0.7.6 fingerprint, got=%v (%v)", cached, err)
	}
	other := config.Default()
	other.License = "GPL-3.0"
	if _, err := s.Cached(ctx, Hash(src), other.Fingerprint()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other config must miss the cache, got=%v", err)
	}

	if _, err := s.Cached(ctx, Hash("broken"), fp); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed artifacts must not be cached, got=%v", err)
	}
	if _, err := s.Latest(ctx, "missing.rb"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got=%v", err)
	}

	all, err := s.List(ctx, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("List expected 4, got=%d (%v)", len(all), err)
	}
	two, _ := s.List(ctx, 2)
	if len(two) != 2 || two[0].Source != "c.rb" {
		t.Fatalf("List limit wrong, got=%v", two)
	}

	first, _ := s.Latest(ctx, "b.rb")
	if got := first.ContractList(); len(got) != 1 || got[0] != "A" {
		t.Fatalf("ContractList wrong, got=%v", got)
	}
	if got := rows[0].WarningList(); len(got) != 2 {
		t.Fatalf("WarningList wrong, got=%v", got)
	}
}

func TestSaveNeedsHash(t *testing.T) {
	s := openTemp(t)
	if err := s.Save(context.Background(), &Artifact{Source: "x.rb"}); err == nil {
		t.Fatalf("expected error for missing hash")
	}
}

func TestDialect(t *testing.T) {
	tests := []struct {
		cfg     config.StoreConfig
		name    string
		wantErr bool
	}{
		{config.StoreConfig{Driver: "postgres", DSN: "host=localhost user=u dbname=d"}, "postgres", false},
		{config.StoreConfig{Driver: "mysql", DSN: "u:p@tcp(localhost:3306)/d"}, "mysql", false},
		{config.StoreConfig{Driver: "postgres"}, "", true},
		{config.StoreConfig{Driver: "mysql"}, "", true},
		{config.StoreConfig{Driver: "oracle", DSN: "x"}, "", true},
	}
	for i, tt := range tests {
		d, err := dialect(tt.cfg)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("tests[%d] - expected error", i)
			}
			continue
		}
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %v", i, err)
		}
		if d.Name() != tt.name {
			t.Fatalf("tests[%d] - dialect wrong. expected=%q, got=%q", i, tt.name, d.Name())
		}
	}
}

func TestHash(t *testing.T) {
	if Hash("") != "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470" {
		t.Fatalf("keccak of empty string wrong, got=%s", Hash(""))
	}
	if Hash("a") == Hash("b") {
		t.Fatalf("hash collision")
	}
}
