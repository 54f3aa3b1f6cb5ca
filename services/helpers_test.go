package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/private_messages/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so every message gets a distinct sent_at.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
	return r.err
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.User{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	svc      *MessageService
	clock    *fakeClock
	notifier *recordingNotifier
	user1    models.User
	user2    models.User
	user3    models.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		db:       openTestDB(t),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
	}
	opts = append([]Option{WithClock(f.clock.Now), WithNotifier(f.notifier)}, opts...)
	f.svc = NewMessageService(f.db, opts...)
	f.user1 = f.createUser(t, "user1", true)
	f.user2 = f.createUser(t, "user2", true)
	f.user3 = f.createUser(t, "user3", true)
	return f
}

func (f *fixture) createUser(t *testing.T, username string, active bool) models.User {
	t.Helper()
	u := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
		Role:     "user",
		IsActive: true,
	}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	if !active {
		if err := f.db.Model(&u).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate %s: %v", username, err)
		}
		u.IsActive = false
	}
	return u
}

func (f *fixture) send(t *testing.T, from, to models.User, subject string) *models.Message {
	t.Helper()
	msg, err := f.svc.Send(context.Background(), ComposeInput{
		SenderID:  from.ID,
		Recipient: to.Username,
		Subject:   subject,
		Body:      "Body of " + subject,
	})
	if err != nil {
		t.Fatalf("send %q: %v", subject, err)
	}
	return msg
}

func (f *fixture) reply(t *testing.T, from models.User, parent *models.Message) *models.Message {
	t.Helper()
	msg, err := f.svc.Reply(context.Background(), ReplyInput{
		SenderID: from.ID,
		ParentID: parent.ID,
		Body:     "reply body",
	})
	if err != nil {
		t.Fatalf("reply to %d: %v", parent.ID, err)
	}
	return msg
}

func (f *fixture) reload(t *testing.T, id uint) models.Message {
	t.Helper()
	var m models.Message
	if err := f.db.First(&m, id).Error; err != nil {
		t.Fatalf("reload %d: %v", id, err)
	}
	return m
}

func ids(messages []models.Message) []uint {
	out := make([]uint, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func equalIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
