//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

// testDB holds the shared database for the suite.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

var globalDB *testDB

// TestMain connects to CLINIC_TEST_DATABASE_URL when set, otherwise starts a
// throwaway postgres container, and applies the migrations once.
func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupDatabase(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("CLINIC_TEST_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		var err error
		connStr, stop, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, connStr, 10, 1)
	if err != nil {
		stop()
		return nil, nil, err
	}

	dir := findMigrationsDir()
	if _, err := db.NewMigrator(pool, dir).Up(ctx); err != nil {
		pool.Close()
		stop()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &testDB{Pool: pool, ConnStr: connStr, MigrationsDir: dir}, func() {
		pool.Close()
		stop()
	}, nil
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// uniqueUsername returns a username that fits the 20 character limit and
// does not collide across runs against a shared database.
func uniqueUsername(prefix string) string {
	return prefix + uuid.NewString()[:8]
}

func createTestDoctor(t *testing.T, ctx context.Context, prefix string) *doctor.Doctor {
	t.Helper()
	svc := doctor.NewService(doctor.NewRepo(globalDB.Pool), auth.NewPasswordHasher(4))
	d, err := svc.Register(ctx, doctor.Registration{
		Username:        uniqueUsername(prefix),
		Password:        "Secret1!",
		ConfirmPassword: "Secret1!",
	})
	if err != nil {
		t.Fatalf("register doctor: %v", err)
	}
	return d
}

func ptrStr(s string) *string { return &s }

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
