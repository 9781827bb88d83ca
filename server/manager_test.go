package server

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(codes ...string) (*Manager, *Directory) {
	dir := NewDirectory()
	return NewManager(dir, sequenceGen(codes...), 3, 100), dir
}

func TestManager_CreateThenLeave(t *testing.T) {
	m, dir := newTestManager("ABCD")
	l, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)
	assert.Equal(t, "ABCD", l.Code)
	assert.Equal(t, PlayerID("a"), l.Host)
	assert.Equal(t, StateForming, l.State)

	assert.Nil(t, m.LeaveSession("a"))
	_, ok := m.Get("ABCD")
	assert.False(t, ok)
	assert.Equal(t, 0, dir.Len())
}

func TestManager_CreateTwice(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)
	_, err = m.CreateSession("a", "alice", udpAddr(1))
	assert.ErrorIs(t, err, ErrAlreadyInSession)
	assert.Equal(t, 1, m.Len())
}

func TestManager_CodeCollisionRegenerates(t *testing.T) {
	m, _ := newTestManager("AAAA", "aaaa", "BBBB")
	l1, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)
	l2, err := m.CreateSession("b", "bob", udpAddr(2))
	require.NoError(t, err)
	assert.Equal(t, "AAAA", l1.Code)
	assert.Equal(t, "BBBB", l2.Code)
}

func TestManager_CodeSpaceExhausted(t *testing.T) {
	dir := NewDirectory()
	m := NewManager(dir, func() string { return "AAAA" }, 3, 100)
	_, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)
	_, err = m.CreateSession("b", "bob", udpAddr(2))
	assert.Error(t, err)
	_, registered := dir.Get("b")
	assert.False(t, registered)
}

func TestManager_JoinCapacity(t *testing.T) {
	m, _ := newTestManager("ABCD")
	_, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)

	l, err := m.JoinSession("b", "abcd", "bob", udpAddr(2))
	require.NoError(t, err)
	assert.Len(t, l.Members, 2)

	_, err = m.JoinSession("c", "ABCD", "carol", udpAddr(3))
	assert.ErrorIs(t, err, ErrSessionFull)
	k, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindCapacity, k)
}

func TestManager_JoinErrors(t *testing.T) {
	m, dir := newTestManager("ABCD", "WXYZ")
	_, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)
	_, err = m.CreateSession("b", "bob", udpAddr(2))
	require.NoError(t, err)

	_, err = m.JoinSession("c", "NOPE", "carol", udpAddr(3))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, registered := dir.Get("c")
	assert.False(t, registered)

	_, err = m.JoinSession("b", "ABCD", "bob", udpAddr(2))
	assert.ErrorIs(t, err, ErrAlreadyInSession)
}

func TestManager_LookupHidesOccupancy(t *testing.T) {
	m, _ := newTestManager("ABCD")
	_, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)

	assert.NotNil(t, m.LookupSession("abcd"))
	assert.Nil(t, m.LookupSession("ZZZZ"))

	_, err = m.JoinSession("b", "ABCD", "bob", udpAddr(2))
	require.NoError(t, err)
	assert.Nil(t, m.LookupSession("ABCD"))

	l, _ := m.Get("ABCD")
	assert.Len(t, l.Members, 2)
}

func TestManager_HostMigration(t *testing.T) {
	m, _ := newTestManager("ABCD")
	_, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)
	_, err = m.JoinSession("b", "ABCD", "bob", udpAddr(2))
	require.NoError(t, err)

	l := m.LeaveSession("a")
	require.NotNil(t, l)
	assert.Equal(t, PlayerID("b"), l.Host)
	if diff := cmp.Diff([]PlayerID{"b"}, l.Members); diff != "" {
		t.Errorf("members after leave; diff:\n%s", diff)
	}

	// 非房主离开不改变房主
	_, err = m.JoinSession("c", "ABCD", "carol", udpAddr(3))
	require.NoError(t, err)
	l = m.LeaveSession("c")
	require.NotNil(t, l)
	assert.Equal(t, PlayerID("b"), l.Host)
}

func TestManager_LeaveDuringCountdownReverts(t *testing.T) {
	m, _ := newTestManager("ABCD")
	l, err := m.CreateSession("a", "alice", udpAddr(1))
	require.NoError(t, err)
	_, err = m.JoinSession("b", "ABCD", "bob", udpAddr(2))
	require.NoError(t, err)

	l.State = StateCountdown
	l.Countdown = 1
	epoch := l.epoch

	m.LeaveSession("b")
	assert.Equal(t, StateForming, l.State)
	assert.Equal(t, 3, l.Countdown)
	assert.NotEqual(t, epoch, l.epoch)
}

func TestManager_LeaveUnknown(t *testing.T) {
	m, _ := newTestManager()
	assert.Nil(t, m.LeaveSession("ghost"))
}

func TestRandomCode(t *testing.T) {
	for i := 0; i < 20; i++ {
		c := RandomCode()
		assert.Len(t, c, CodeLength)
		assert.Equal(t, NormalizeCode(c), c)
	}
}
