package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogbook_Record(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	book, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, path, book.Path())

	book.Record(planning.AuditEvent{
		Action:   "unlock_period",
		PeriodID: "2026-W43",
		Actor:    "boss",
		Count:    3,
		At:       time.Date(2026, 10, 23, 17, 0, 0, 0, time.UTC),
	})

	lines, err := book.Tail(10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "2026-10-23T17:00:00Z WARN  unlock_period period=2026-W43 actor=boss assignments=3", lines[0])
}

func TestLogbook_Tail(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)

	lines, err := book.Tail(3)
	require.NoError(t, err)
	assert.Empty(t, lines, "nothing written yet")

	for i := 0; i < 5; i++ {
		require.NoError(t, book.Append(LevelInfo, fmt.Sprintf("entry %d", i)))
	}

	lines, err = book.Tail(2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "entry 3")
	assert.Contains(t, lines[1], "entry 4")

	lines, err = book.Tail(0)
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestLogbook_WriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	book, err := New(path)
	require.NoError(t, err)
	// A directory in place of the file makes every open fail
	require.NoError(t, os.Mkdir(path, 0o755))

	err = book.Append(LevelInfo, "lost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open audit log")

	assert.NotPanics(t, func() {
		book.Record(planning.AuditEvent{Action: "unlock", PeriodID: "2026-W43", Actor: "boss", At: time.Now()})
	})

	_, err = book.Tail(5)
	assert.Error(t, err)
}

func TestLogbook_Nil(t *testing.T) {
	var book *Logbook

	assert.NotPanics(t, func() {
		assert.NoError(t, book.Append(LevelError, "ignored"))
	})
	assert.Equal(t, "", book.Path())
	lines, err := book.Tail(5)
	assert.NoError(t, err)
	assert.Nil(t, lines)
}
