package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/tonojkeee/koordinator/internal/attachments"
	"github.com/tonojkeee/koordinator/internal/database"
	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/settings"
	"github.com/tonojkeee/koordinator/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDomain = "coordinator.local"

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// Create a temporary database file
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()+"?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := database.RunMigrations(db); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.Remove(tmpFile.Name())
	}

	return db, cleanup
}

// memStore keeps attachment files in memory.
type memStore struct {
	mu     sync.Mutex
	files  map[string][]byte
	failAt int // fail the n-th Save (1-based), 0 never
	saves  int
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, name string, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failAt > 0 && m.saves == m.failAt {
		return "", storage.ErrFileWriteFailed
	}
	m.files[name] = append([]byte(nil), content...)
	return name, nil
}

func (m *memStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return storage.ErrFileNotFound
	}
	delete(m.files, path)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// fakeTransmitter records sends and optionally fails them.
type fakeTransmitter struct {
	mu    sync.Mutex
	fail  bool
	sent  [][]byte
	rcpts [][]string
}

func (f *fakeTransmitter) Transmit(_ context.Context, _ string, rcpts []string, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, msg)
	f.rcpts = append(f.rcpts, rcpts)
	return nil
}

// testEnv wires the mail services over one database.
type testEnv struct {
	db          *gorm.DB
	store       *memStore
	settings    *settings.Store
	transmitter *fakeTransmitter
	users       *UserService
	accounts    *AccountService
	ingest      *IngestService
	email       *EmailService
	folders     *FolderService
}

func newTestEnv(t *testing.T) (*testEnv, func()) {
	db, cleanup := setupTestDB(t)

	env := &testEnv{
		db:          db,
		store:       newMemStore(),
		settings:    settings.NewStore(db),
		transmitter: &fakeTransmitter{},
		users:       NewUserService(db),
		folders:     NewFolderService(db),
	}
	typed := settings.New(env.settings, testDomain)
	logService := NewLogService(db)
	extractor := attachments.NewExtractor(env.store)

	env.accounts = NewAccountService(db, env.users, typed, logService)
	env.ingest = NewIngestService(db, env.accounts, extractor, typed, logService)
	env.email = NewEmailService(db, env.store, env.transmitter, logService)
	return env, cleanup
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), username, "secret123", username)
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}
