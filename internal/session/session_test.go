package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/collegeadmin/internal/console"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

func TestManager_CreateGetRemove(t *testing.T) {
	reg := schema.MustLoad()
	var built []string
	m := NewManager(time.Hour, time.Hour, func(id string) *console.Workspace {
		built = append(built, id)
		return console.NewWorkspace(reg, nil, nil)
	})

	s := m.Create("admin@college.edu")
	require.NotNil(t, s.Workspace)
	assert.Equal(t, []string{s.ID}, built)
	assert.Same(t, s, m.Get(s.ID))
	assert.Equal(t, 1, m.Len())

	m.Remove(s.ID)
	assert.Nil(t, m.Get(s.ID))
}

func TestManager_ExpiresIdleSessions(t *testing.T) {
	m := NewManager(time.Hour, time.Millisecond, nil)
	s := m.Create("")
	time.Sleep(5 * time.Millisecond)

	assert.Nil(t, m.Get(s.ID))
	assert.Equal(t, 0, m.Len())
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager(time.Millisecond, 0, nil)
	m.Create("a")
	m.Create("b")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, m.Cleanup())
	assert.Equal(t, 0, m.Len())
}

func TestSession_ZeroTimeoutsNeverExpire(t *testing.T) {
	s := NewSession("", nil)
	assert.False(t, s.IsExpired(0))
	assert.False(t, s.IsIdle(0))
}
