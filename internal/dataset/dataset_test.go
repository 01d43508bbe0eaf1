package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSet_DefaultsToNull(t *testing.T) {
	s := New("", "")
	require.NoError(t, s.Load())

	snap := s.Snapshot()
	assert.JSONEq(t, "null", string(snap.Planning))
	assert.JSONEq(t, "null", string(snap.Benevoles))
}

func TestSet_LoadPassesContentThrough(t *testing.T) {
	dir := t.TempDir()
	planning := writeFile(t, dir, "planning.json", `{"missions":[{"id":"m1","title":"Accueil"}]}`)
	benevoles := writeFile(t, dir, "benevoles.json", `[{"name":"Camille"}]`)

	s := New(planning, benevoles)
	require.NoError(t, s.Load())

	snap := s.Snapshot()
	assert.JSONEq(t, `{"missions":[{"id":"m1","title":"Accueil"}]}`, string(snap.Planning))
	assert.JSONEq(t, `[{"name":"Camille"}]`, string(snap.Benevoles))
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestSet_FailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	planning := writeFile(t, dir, "planning.json", `{"v":1}`)

	s := New(planning, "")
	require.NoError(t, s.Load())

	writeFile(t, dir, "planning.json", `{"v":`)
	assert.Error(t, s.Load())
	s.Reload()

	assert.JSONEq(t, `{"v":1}`, string(s.Snapshot().Planning))

	writeFile(t, dir, "planning.json", `{"v":2}`)
	s.Reload()
	assert.JSONEq(t, `{"v":2}`, string(s.Snapshot().Planning))
}

func TestSet_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Error(t, s.Load())
}

func TestSet_Schedule(t *testing.T) {
	s := New("", "")

	c, err := s.Schedule("")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = s.Schedule("not a cron")
	assert.Error(t, err)

	c, err = s.Schedule("*/5 * * * *")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)
	c.Stop()
}
