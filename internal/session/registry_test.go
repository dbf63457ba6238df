package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/backend/internal/apperr"
	"github.com/classpulse/backend/internal/models"
)

func TestAddRequiresStudentID(t *testing.T) {
	r := NewRegistry()

	err := r.Add("c1", models.RoleStudent, "Ana", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = r.Add("c1", "moderator", "Ana", "s1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, r.Add("c1", models.RoleTeacher, "Miss T", ""))
	require.NoError(t, r.Add("c2", models.RoleStudent, "Ana", "s1"))
}

func TestRejoinSupersedesOldConnection(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("c1", models.RoleStudent, "Ana", "s1"))
	require.NoError(t, r.Add("c2", models.RoleStudent, "Ana", "s1"))

	roster := r.Students()
	require.Len(t, roster, 1, "same studentId must not produce duplicate roster rows")
	assert.Equal(t, "s1", roster[0].StudentID)
	assert.Equal(t, 1, r.StudentCount())

	_, ok := r.Get("c1")
	assert.False(t, ok, "superseded connection must be dropped")
	p, ok := r.Get("c2")
	require.True(t, ok)
	assert.Equal(t, "s1", p.StudentID)

	// The stale connection disconnecting later must not evict the new one.
	r.Remove("c1")
	assert.Equal(t, 1, r.StudentCount())
	r.Remove("c1")
	assert.Equal(t, 1, r.StudentCount())
}

func TestRosterInsertionOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("t", models.RoleTeacher, "Miss T", ""))
	require.NoError(t, r.Add("c1", models.RoleStudent, "Ana", "s1"))
	require.NoError(t, r.Add("c2", models.RoleStudent, "", "s2"))
	require.NoError(t, r.Add("c3", models.RoleStudent, "Cal", "s3"))

	roster := r.Students()
	require.Len(t, roster, 3)
	assert.Equal(t, []models.RosterEntry{
		{StudentID: "s1", Name: "Ana"},
		{StudentID: "s2", Name: "Student"},
		{StudentID: "s3", Name: "Cal"},
	}, roster)
	assert.Equal(t, 3, r.StudentCount())
}

func TestKick(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("c1", models.RoleStudent, "Ana", "s1"))

	_, err := r.Kick("missing")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	connID, err := r.Kick("s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", connID)
	assert.Empty(t, r.Students())
	assert.True(t, r.IsKicked("s1"))

	// Once evicted there is no live connection left to kick.
	_, err = r.Kick("s1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// The kick list outlives the connection for the rest of the process.
	assert.True(t, r.IsKicked("s1"))
	assert.False(t, r.IsKicked("s2"))
}
