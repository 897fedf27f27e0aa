package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixedNow = "2024-03-01T12:00:00Z"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "progressctl", cmd.Use)

	for _, name := range []string{"key", "reconcile", "show"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "key", "--user", "u1", "--content", "c1", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestKey_Text(t *testing.T) {
	out, err := execute(t, "key", "--user", "u1", "--content", "c1")
	require.NoError(t, err)
	assert.Equal(t, "441568a81b52b639af66562ec7f632113ac5a6fc82cc79b498393cc2857c08a4\n", out)
}

func TestKey_JSON(t *testing.T) {
	out, err := execute(t, "key", "--user", "u1", "--content", "c1", "--course", "course-1", "--batch", "batch-1", "--format", "json")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "key_json", []byte(out))
}

func TestKey_RequiresFlags(t *testing.T) {
	_, err := execute(t, "key", "--user", "u1")
	require.Error(t, err)
}

func TestReconcile_JSON(t *testing.T) {
	out, err := execute(t, "reconcile", "--user", "u1", "--file", "testdata/batch.yaml", "--now", fixedNow, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	newGoldie(t).Assert(t, "reconcile_json", []byte(out))
}

func TestReconcile_Text(t *testing.T) {
	out, err := execute(t, "reconcile", "--user", "u1", "--file", "testdata/batch.yaml", "--now", fixedNow)
	assert.Equal(t, ExitFailure, ExitCode(err))
	newGoldie(t).Assert(t, "reconcile_text", []byte(out))
}

func TestReconcile_InvalidBatch(t *testing.T) {
	_, err := execute(t, "reconcile", "--user", "u1", "--file", "testdata/invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestReconcile_MissingFile(t *testing.T) {
	_, err := execute(t, "reconcile", "--user", "u1", "--file", "testdata/nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestReconcile_BadNow(t *testing.T) {
	_, err := execute(t, "reconcile", "--user", "u1", "--file", "testdata/batch.yaml", "--now", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestReconcileThenShow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "progress.db")

	_, err := execute(t, "reconcile", "--user", "u1", "--file", "testdata/batch.yaml", "--now", fixedNow, "--sqlite", db)
	assert.Equal(t, ExitFailure, ExitCode(err))

	out, err := execute(t, "show", "--user", "u1", "--content", "c1", "--course", "course-1", "--batch", "batch-1", "--sqlite", db, "--format", "json")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "show_json", []byte(out))

	out, err = execute(t, "show", "--user", "u1", "--content", "c3", "--sqlite", db)
	require.NoError(t, err)
	assert.Contains(t, out, "status:          NOT_STARTED")
	assert.Contains(t, out, "views:           1")

	_, err = execute(t, "show", "--user", "u1", "--content", "c2", "--sqlite", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
}
