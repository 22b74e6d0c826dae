// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/user"
	"github.com/campusmentor/campusmentor/storage/database"
)

// Epoch is the default time of the fake Clock.
var Epoch = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

// OpenDB returns a migrated SQLite database living in a temporary directory.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Database.Name = filepath.Join(t.TempDir(), "campusmentor.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed: %+v", err)
	}
	return db
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() *validator.Validate {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email string,
	role user.Role,
	department string,
	pwd string,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := Epoch
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:       name,
		Email:      email,
		Role:       role,
		Department: department,
		IsActive:   true,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Clock is a settable core.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

var _ core.Clock = (*Clock)(nil)

func NewClock(now ...time.Time) *Clock {
	c := &Clock{now: Epoch}
	if len(now) > 0 {
		c.now = now[0].UTC()
	}
	return c
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now.UTC()
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records what it is given.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }

// Messages returns the messages logged at level.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

type Sent struct {
	UserID  string
	Message string
	Type    notification.Type
}

// Notifier records notifications instead of storing them.
type Notifier struct {
	mu   sync.Mutex
	sent []Sent
}

func (n *Notifier) Notify(_ context.Context, userID, message string, typ notification.Type) {
	n.mu.Lock()
	n.sent = append(n.sent, Sent{UserID: userID, Message: message, Type: typ})
	n.mu.Unlock()
}

func (n *Notifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}

// SentTo returns the notifications sent to userID.
func (n *Notifier) SentTo(userID string) []Sent {
	var out []Sent
	for _, s := range n.Sent() {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// MemoryStore is an in-memory core.ArtifactStore.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// SaveErr makes Save fail when set.
	SaveErr error
}

var _ core.ArtifactStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, name string, content []byte, _ string) (string, error) {
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	ref := "mem://" + name
	s.mu.Lock()
	s.objects[ref] = append([]byte(nil), content...)
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", ref)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *MemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	delete(s.objects, ref)
	s.mu.Unlock()
	return nil
}

// Refs returns the stored references, sorted.
func (s *MemoryStore) Refs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]string, 0, len(s.objects))
	for ref := range s.objects {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
