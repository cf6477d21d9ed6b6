package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/wopihost/internal/client/admin"
	"github.com/dmitrijs2005/wopihost/internal/client/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmin struct {
	secret     string
	pruneAuto  *int
	pruneExp   *int
	unlocked   string
	revoked    string
	imported   []byte
	importID   string
	importName string
	lock       *admin.LockInfo
	err        error
	closed     bool
}

func (f *fakeAdmin) Ping(context.Context) error { return f.err }

func (f *fakeAdmin) Prune(_ context.Context, _ string, keepAuto, keepExplicit *int) (*admin.PruneResult, error) {
	f.pruneAuto, f.pruneExp = keepAuto, keepExplicit
	if f.err != nil {
		return nil, f.err
	}
	return &admin.PruneResult{Deleted: []string{"1.1"}, Retained: []string{"1.2"}}, nil
}

func (f *fakeAdmin) ForceUnlock(_ context.Context, fileID string) error {
	f.unlocked = fileID
	return f.err
}

func (f *fakeAdmin) RevokeToken(_ context.Context, fileID, user string) error {
	f.revoked = fileID + "/" + user
	return f.err
}

func (f *fakeAdmin) GetLock(_ context.Context, fileID string) (*admin.LockInfo, error) {
	if f.lock != nil {
		return f.lock, f.err
	}
	return &admin.LockInfo{FileID: fileID}, f.err
}

func (f *fakeAdmin) Import(_ context.Context, fileID, name, owner, mimeType string, data []byte) (*admin.ImportResult, error) {
	f.importID, f.importName, f.imported = fileID, name, data
	return &admin.ImportResult{FileID: fileID, Name: name, Owner: "admin", MimeType: "text/plain", Size: int64(len(data)), Version: "1.0"}, f.err
}

func (f *fakeAdmin) Close() error {
	f.closed = true
	return nil
}

func useFake(t *testing.T, f *fakeAdmin) {
	t.Helper()
	orig := dial
	dial = func(cfg *config.Config) (AdminAPI, error) {
		f.secret = cfg.SecretKey
		return f, nil
	}
	t.Cleanup(func() { dial = orig })
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func historyFlag(t *testing.T) []string {
	return []string{"--secret", "top-secret", "--history", filepath.Join(t.TempDir(), "h.db")}
}

func TestPrune_PassesOnlyGivenKeeps(t *testing.T) {
	f := &fakeAdmin{}
	useFake(t, f)

	out, err := run(t, "", append(historyFlag(t), "prune", "f1", "--keep-auto", "2")...)
	require.NoError(t, err)
	require.NotNil(t, f.pruneAuto)
	assert.Equal(t, 2, *f.pruneAuto)
	assert.Nil(t, f.pruneExp)
	assert.Contains(t, out, "Deleted:  1.1")
	assert.Contains(t, out, "Skipped:  -")
	assert.Equal(t, "top-secret", f.secret)
	assert.True(t, f.closed)
}

func TestPrune_JSONOutput(t *testing.T) {
	useFake(t, &fakeAdmin{})

	out, err := run(t, "", append(historyFlag(t), "--json", "prune", "f1")...)
	require.NoError(t, err)

	var res admin.PruneResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"1.1"}, res.Deleted)
}

func TestLockAndUnlock(t *testing.T) {
	f := &fakeAdmin{lock: &admin.LockInfo{FileID: "f1", Locked: true, LockID: "L1", Owner: "bob", ExpiresAt: "2024-03-01T09:30:00.000Z"}}
	useFake(t, f)
	flags := historyFlag(t)

	out, err := run(t, "", append(flags, "lock", "f1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Lock ID: L1")
	assert.Contains(t, out, "Owner:   bob")

	out, err = run(t, "", append(flags, "unlock", "f1")...)
	require.NoError(t, err)
	assert.Equal(t, "f1", f.unlocked)
	assert.Contains(t, out, "Lock cleared on f1")
}

func TestRevoke(t *testing.T) {
	f := &fakeAdmin{}
	useFake(t, f)

	out, err := run(t, "", append(historyFlag(t), "revoke", "f1", "bob")...)
	require.NoError(t, err)
	assert.Equal(t, "f1/bob", f.revoked)
	assert.Contains(t, out, "Token of bob on f1 revoked")

	_, err = run(t, "", append(historyFlag(t), "revoke", "f1")...)
	require.Error(t, err)
}

func TestImport_DefaultsIDAndName(t *testing.T) {
	f := &fakeAdmin{}
	useFake(t, f)

	path := filepath.Join(t.TempDir(), "report.odt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

	out, err := run(t, "", append(historyFlag(t), "import", path)...)
	require.NoError(t, err)
	assert.Equal(t, "report", f.importID)
	assert.Equal(t, "report.odt", f.importName)
	assert.Equal(t, []byte("content"), f.imported)
	assert.Contains(t, out, "Imported report.odt as report")

	_, err = run(t, "", append(historyFlag(t), "import", filepath.Join(t.TempDir(), "missing.odt"))...)
	require.Error(t, err)
}

func TestHistory_RecordsSuccessAndFailure(t *testing.T) {
	f := &fakeAdmin{}
	useFake(t, f)
	flags := historyFlag(t)

	_, err := run(t, "", append(flags, "prune", "f1")...)
	require.NoError(t, err)

	f.err = admin.ErrNotFound
	_, err = run(t, "", append(flags, "unlock", "f2")...)
	require.ErrorIs(t, err, admin.ErrNotFound)

	out, err := run(t, "", append(flags, "history")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "unlock")
	assert.Contains(t, lines[0], "FAILED")
	assert.Contains(t, lines[0], "not found")
	assert.Contains(t, lines[1], "prune")
	assert.Contains(t, lines[1], "deleted 1, retained 1")

	out, err = run(t, "", append(flags, "history", "--file", "f1")...)
	require.NoError(t, err)
	assert.NotContains(t, out, "unlock")
}

func TestHistoryClear_AsksForConfirmation(t *testing.T) {
	useFake(t, &fakeAdmin{})
	flags := historyFlag(t)

	_, err := run(t, "", append(flags, "prune", "f1")...)
	require.NoError(t, err)

	out, err := run(t, "n\n", append(flags, "history", "clear")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")

	out, err = run(t, "", append(flags, "history")...)
	require.NoError(t, err)
	assert.Contains(t, out, "prune")

	out, err = run(t, "yes\n", append(flags, "history", "clear")...)
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared")

	out, err = run(t, "", append(flags, "history")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No history")
}

func TestHistory_Disabled(t *testing.T) {
	useFake(t, &fakeAdmin{})

	_, err := run(t, "", "--secret", "s", "--history", "", "prune", "f1")
	require.NoError(t, err)

	_, err = run(t, "", "--history", "", "history")
	require.Error(t, err)
}

func TestSecret_PromptedWhenMissing(t *testing.T) {
	f := &fakeAdmin{}
	useFake(t, f)
	t.Setenv("WOPICTL_SECRET_KEY", "")

	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) { return []byte("typed-secret\n"), nil }

	out, err := run(t, "", "--history", "", "ping")
	require.NoError(t, err)
	assert.Equal(t, "typed-secret", f.secret)
	assert.Contains(t, out, "Server secret: ")
	assert.Contains(t, out, "SERVING")

	readPassword = func(int) ([]byte, error) { return nil, errors.New("no tty") }
	_, err = run(t, "", "--history", "", "ping")
	require.Error(t, err)
}

func TestArgsAreChecked(t *testing.T) {
	useFake(t, &fakeAdmin{})
	_, err := run(t, "", "--secret", "s", "prune")
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	ok, err := confirm(bufio.NewReader(strings.NewReader("Y\n")), "Sure?", &out)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = confirm(bufio.NewReader(strings.NewReader("")), "Sure?", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}
