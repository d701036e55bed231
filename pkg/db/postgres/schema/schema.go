// Package schema applies the workspace database schema from a repository
// directory of versioned DDL, and watches that directory for drift.
package schema

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	kpool "github.com/spacefab/spacefab/pkg/db/postgres/pool"
)

type pgSchema struct {
	pool             kpool.Pool
	schemaRepository string
}

// New creates a schema manager reading DDL from schemaRepository.
//
// The repository holds one directory per version, named by its number
// ("1", "2", ...), each containing .sql files applied in path order.
func New(pool kpool.Pool, schemaRepository string) *pgSchema {
	return &pgSchema{
		pool:             pool,
		schemaRepository: schemaRepository,
	}
}

type version struct {
	Version int
	Root    string
}

func (v version) Apply(ctx context.Context, conn kpool.Queryer) error {
	return filepath.WalkDir(v.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		query, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = conn.Exec(ctx, string(query))
		return err
	})
}

// Version reports the schema version recorded in the database.
//
// A database without the version table is version 0.
func (s *pgSchema) Version(ctx context.Context) (int, error) {
	var v int
	if err := s.pool.QueryRow(
		ctx, `SELECT max("version") FROM "schema_version"`,
	).Scan(&v); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			if pgerr.Code == pgerrcode.UndefinedTable {
				return 0, nil
			}
		}
		return -1, err
	}
	return v, nil
}

// Upgrade applies every repository version newer than the database's, in one
// transaction.
func (s *pgSchema) Upgrade(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	schemaVersions, err := s.versions()
	if err != nil {
		return err
	}

	currentVersion, err := s.Version(ctx)
	if err != nil {
		return err
	}

	for _, v := range schemaVersions {
		if v.Version <= currentVersion {
			continue
		}
		if err := v.Apply(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM "schema_version"`); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO "schema_version" ("version") VALUES ($1)`,
			v.Version,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Context derives a context which is cancelled when the schema repository
// contains a version the database has not applied.
//
// The repository directory is watched, so dropping a newer version in while
// the server runs stops it instead of letting it write with stale schema.
func (s *pgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, can := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		can(err)
		return cctx, func() {}
	}
	if err := w.Add(s.schemaRepository); err != nil {
		can(err)
		return cctx, func() {}
	}

	checkVersion := func() {
		vs, err := s.versions()
		if err != nil {
			can(fmt.Errorf("failed to read schema repository: %w", err))
			return
		}

		currentVersion, err := s.Version(ctx)
		if err != nil {
			can(fmt.Errorf("failed to get current schema version: %w", err))
			return
		}

		for _, v := range vs {
			if currentVersion < v.Version {
				can(fmt.Errorf(
					"schema is outdated: %d (in db) < %d (in repository)",
					currentVersion, v.Version,
				))
				return
			}
		}
	}

	go func() {
		defer w.Close()

		for {
			select {
			case <-cctx.Done():
				return
			case ev := <-w.Events:
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				if s.schemaRepository != filepath.Dir(ev.Name) {
					continue
				}
				checkVersion()
			}
		}
	}()

	checkVersion()
	return cctx, func() { can(nil) }
}

func (s *pgSchema) versions() ([]version, error) {
	entries, err := os.ReadDir(s.schemaRepository)
	if err != nil {
		return nil, err
	}

	versions := make([]version, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		num, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		versions = append(versions, version{
			Version: num,
			Root:    filepath.Join(s.schemaRepository, e.Name()),
		})
	}

	slices.SortFunc(versions, func(a, b version) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return versions, nil
}
