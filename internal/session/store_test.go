package session

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(ttl time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(ttl)
	s.now = clock.Now
	return s, clock
}

func TestStore_CreateGetUpdateDelete(t *testing.T) {
	s, clock := newTestStore(time.Hour)

	created := s.Create("describe")
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "describe", created.Prompt)

	clock.Advance(time.Minute)
	updated, err := s.Update(created.ID, func(sess *Session) {
		sess.Credential = "abc"
		sess.Preset = "technical"
		sess.ID = "hijacked"
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "abc", updated.Credential)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.True(t, got.HasCredential())
	assert.Equal(t, "technical", got.Preset)

	require.NoError(t, s.Delete(created.ID))
	_, err = s.Get(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(created.ID), ErrNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s, _ := newTestStore(0)
	created := s.Create("original")

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	got.Prompt = "changed"

	again, _ := s.Get(created.ID)
	assert.Equal(t, "original", again.Prompt)
}

func TestStore_IdleExpiry(t *testing.T) {
	s, clock := newTestStore(10 * time.Minute)
	a := s.Create("a")
	b := s.Create("b")

	clock.Advance(8 * time.Minute)
	_, err := s.Update(b.ID, func(sess *Session) { sess.Prompt = "b2" })
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = s.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(b.ID)
	assert.NoError(t, err)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, err = s.Update(a.ID, func(*Session) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_CredentialNotSerialized(t *testing.T) {
	s, _ := newTestStore(0)
	created := s.Create("p")
	sess, err := s.Update(created.ID, func(sess *Session) { sess.Credential = "gsk_secret" })
	require.NoError(t, err)

	data, err := json.Marshal(sess)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "gsk_secret"))
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	created := s.Create("")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(created.ID, func(sess *Session) { sess.Prompt += "x" })
		}()
	}
	wg.Wait()

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Prompt, 50)
}
