package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replacechain/testutil"
)

type cliResult struct {
	stdout string
	stderr string
	code   int
}

// isolate runs the test in a scratch directory with a file-backed store and
// returns the state file path.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.Chdir(t, dir)
	statePath := filepath.Join(dir, "state.json")
	t.Setenv("REPLACECHAIN_STORAGE_DRIVER", "file")
	t.Setenv("REPLACECHAIN_STORAGE_FILE_PATH", statePath)
	t.Setenv("REPLACECHAIN_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	return statePath
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

func runCLIContext(t *testing.T, ctx context.Context, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(ctx, args, strings.NewReader(""), &stdout, &stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	res := runCLI(t, args...)
	require.Equal(t, ExitSuccess, res.code, "stderr: %s", res.stderr)
	return res.stdout
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func decodeEnvelope(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func TestAddAndResolve(t *testing.T) {
	isolate(t)

	out := mustRun(t, "add", "A", "B", "--date", "2021-01-01")
	assert.Equal(t, "A -> B (2021-01-01)\n", out)
	mustRun(t, "add", "B", "C", "--date", "2022-01-01")

	out = mustRun(t, "resolve", "A", "B", "C", "ghost")
	assert.Equal(t, strings.Join([]string{
		"A -> C (2022-01-01)",
		"B -> C (2022-01-01)",
		"C -> C (2022-01-01)",
		"ghost -> ghost (no date available) [unknown product]",
		"",
	}, "\n"), out)
}

func TestAddRefusesOlderReplacement(t *testing.T) {
	isolate(t)
	mustRun(t, "add", "A", "B", "--date", "2022-01-01")

	out := mustRun(t, "add", "A", "Z", "--date", "2020-01-01")
	assert.Contains(t, out, "refused: A already resolves to B (2022-01-01)")
	assert.Equal(t, "A -> B (2022-01-01)\n", mustRun(t, "resolve", "A"))
}

func TestAddNormalisesNames(t *testing.T) {
	isolate(t)
	mustRun(t, "add", "  Café ", "Tea", "--date", "2021-01-01")
	assert.Equal(t, "Café -> Tea (2021-01-01)\n", mustRun(t, "resolve", "Café"))
}

func TestAddDefaultsToToday(t *testing.T) {
	isolate(t)
	var res AddResult
	env := decodeEnvelope(t, mustRun(t, "--format", "json", "add", "A", "B"), &res)
	assert.Equal(t, "ok", env.Status)
	assert.True(t, res.Applied)
	assert.Equal(t, time.Now().UTC().Format(time.DateOnly), res.Date)
}

func TestCommandErrors(t *testing.T) {
	isolate(t)
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"bad date", []string{"add", "A", "B", "--date", "someday"}, "invalid --date"},
		{"blank name", []string{"add", " ", "B", "--date", "2021-01-01"}, "must not be empty"},
		{"arg count", []string{"add", "A"}, "invalid arguments"},
		{"unknown flag", []string{"list", "--nope"}, "invalid flags"},
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"bad format", []string{"--format", "xml", "list"}, "invalid format"},
		{"resolve needs names", []string{"resolve"}, "invalid arguments"},
		{"import without input", []string{"import"}, "a file or --watch"},
		{"import file and watch", []string{"import", "x.csv", "--watch", "."}, "not both"},
		{"import missing file", []string{"import", "missing.csv"}, "open missing.csv"},
		{"import bad file format", []string{"import", "x.csv", "--file-format", "xls"}, "invalid --file-format"},
		{"export without target", []string{"export"}, "a file or --upload"},
		{"batch missing file", []string{"batch", "missing.csv"}, "read missing.csv"},
		{"bad driver", []string{"--storage-driver", "floppy", "list"}, "load config"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := runCLI(t, tc.args...)
			assert.Equal(t, ExitCommandError, res.code)
			assert.Contains(t, res.stderr, tc.want)
			assert.Empty(t, res.stdout)
		})
	}
}

func TestJSONErrorEnvelope(t *testing.T) {
	isolate(t)
	res := runCLI(t, "--format", "json", "--storage-driver", "floppy", "list")
	require.Equal(t, ExitCommandError, res.code)
	env := decodeEnvelope(t, res.stdout, nil)
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeConfig, env.Error.Code)

	res = runCLI(t, "--format", "json", "add", "A", "B", "--date", "nope")
	env = decodeEnvelope(t, res.stdout, nil)
	assert.Equal(t, ErrCodeInput, env.Error.Code)
}

func TestList(t *testing.T) {
	isolate(t)
	assert.Empty(t, mustRun(t, "list"))

	mustRun(t, "add", "A", "B", "--date", "2021-01-01")
	mustRun(t, "add", "C", "B", "--date", "2021-02-01")
	assert.Equal(t, "A\nB\nC\n", mustRun(t, "list"))

	var list ProductList
	decodeEnvelope(t, mustRun(t, "--format", "json", "list"), &list)
	assert.Equal(t, ProductList{Products: []string{"A", "B", "C"}, Count: 3}, list)
}

func TestImportFile(t *testing.T) {
	isolate(t)
	path := writeInput(t, "replacements.csv", "Old Product,New Product,Date\nA,B,2021-01-01\nB,C,2022-01-01\nA,X,2020-01-01\n")

	out := mustRun(t, "import", path)
	assert.Equal(t, "replacements.csv: processed 3, applied 2, refused 1, new products 4\n", out)
	assert.Equal(t, "A -> C (2022-01-01)\n", mustRun(t, "resolve", "A"))

	yamlPath := writeInput(t, "more.yaml", "- old: C\n  new: D\n  date: \"2023-01-01\"\n")
	mustRun(t, "import", yamlPath)
	assert.Equal(t, "A -> D (2023-01-01)\n", mustRun(t, "resolve", "A"))

	res := runCLI(t, "import", writeInput(t, "bad.csv", "Old Product,New Product,Date\nA,B,soon\n"))
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "line 2")
}

func TestImportVerboseProgress(t *testing.T) {
	isolate(t)
	path := writeInput(t, "r.csv", "Old Product,New Product,Date\nA,B,2021-01-01\n")
	res := runCLI(t, "-v", "import", path)
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stderr, "imported 1/1")
}

func TestImportWatch(t *testing.T) {
	statePath := isolate(t)
	inbox := filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.Mkdir(inbox, 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan cliResult, 1)
	go func() {
		done <- runCLIContext(t, ctx, "import", "--watch", inbox, "--debounce", "20ms")
	}()

	// the store is written once at startup; wait for it so the watcher is up
	require.Eventually(t, func() bool {
		_, err := os.Stat(statePath)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(inbox, "day1.csv"),
		[]byte("Old Product,New Product,Date\nA,B,2021-01-01\n"), 0o600))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(statePath)
		return err == nil && bytes.Contains(data, []byte(`"B"`))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case res := <-done:
		assert.Equal(t, ExitSuccess, res.code, res.stderr)
		assert.Contains(t, res.stdout, "day1.csv: processed 1, applied 1")
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, "A -> B (2021-01-01)\n", mustRun(t, "resolve", "A"))
}

func TestExport(t *testing.T) {
	isolate(t)
	mustRun(t, "add", "A", "B", "--date", "2021-01-01")
	mustRun(t, "add", "B", "C", "--date", "2022-01-01")

	out := mustRun(t, "export", "mappings.csv")
	assert.Equal(t, "wrote 3 mappings to mappings.csv\n", out)
	data, err := os.ReadFile("mappings.csv")
	require.NoError(t, err)
	assert.Equal(t, "Old Product,New Product,Date\nA,C,2022-01-01\nB,C,2022-01-01\nC,C,2022-01-01\n", string(data))

	mustRun(t, "export", "mappings.out", "--file-format", "json")
	data, err = os.ReadFile("mappings.out")
	require.NoError(t, err)
	var rows []map[string]string
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]string{"product": "A", "latest": "C", "date": "2022-01-01"}, rows[0])

	entries, err := os.ReadDir(".")
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestExportUpload(t *testing.T) {
	isolate(t)
	mustRun(t, "add", "A", "B", "--date", "2021-01-01")

	var res ExportResult
	decodeEnvelope(t, mustRun(t, "--format", "json", "export", "--upload", "--file-format", "yaml"), &res)
	assert.Equal(t, 2, res.Rows)
	assert.Empty(t, res.File)
	require.True(t, strings.HasPrefix(res.UploadKey, ExportKeyPrefix), res.UploadKey)
	require.True(t, strings.HasSuffix(res.UploadKey, ".yaml"), res.UploadKey)

	id, err := uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(res.UploadKey, ExportKeyPrefix), ".yaml"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.True(t, strings.HasPrefix(res.URL, "file://"), res.URL)

	t.Setenv("REPLACECHAIN_BLOB_DRIVER", "memory")
	out := mustRun(t, "export", "local.csv", "--upload")
	assert.Contains(t, out, "wrote 2 mappings to local.csv\nuploaded 2 mappings as exports/")
	assert.NotContains(t, out, "file://")
}

func TestBatch(t *testing.T) {
	isolate(t)
	mustRun(t, "add", "A", "B", "--date", "2021-01-01")

	in := writeInput(t, "orders.csv", "Old Product,Qty\nA,3\nghost,1\n")
	out := mustRun(t, "batch", in, "--output", "resolved.csv")
	assert.Equal(t, "resolved 2 rows from orders.csv into resolved.csv\n", out)

	data, err := os.ReadFile("resolved.csv")
	require.NoError(t, err)
	assert.Equal(t, "Old Product,Qty,New Product,Date\nA,3,B,2021-01-01\nghost,1,ghost,\n", string(data))

	mustRun(t, "batch", in)
	rewritten, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(rewritten))

	res := runCLI(t, "batch", writeInput(t, "nocol.csv", "Product\nA\n"))
	assert.Equal(t, ExitCommandError, res.code)
}

func TestStateExportImport(t *testing.T) {
	statePath := isolate(t)
	mustRun(t, "add", "A", "B", "--date", "2021-01-01")
	mustRun(t, "add", "C", "B", "--date", "2021-06-01")

	assert.Equal(t, "exported 3 products to snapshot.json\n", mustRun(t, "state", "export", "snapshot.json"))

	t.Setenv("REPLACECHAIN_STORAGE_FILE_PATH", filepath.Join(filepath.Dir(statePath), "other.json"))
	assert.Equal(t, "A -> A (no date available) [unknown product]\n", mustRun(t, "resolve", "A"))
	assert.Equal(t, "imported 3 products from snapshot.json\n", mustRun(t, "state", "import", "snapshot.json"))
	assert.Equal(t, "A -> B (2021-06-01)\n", mustRun(t, "resolve", "A"))
}

func TestStateImportRejectsMalformed(t *testing.T) {
	isolate(t)
	mustRun(t, "add", "A", "B", "--date", "2021-01-01")

	path := writeInput(t, "broken.json", `{"version":1,"products":["A","B"],"union_find":[{"parent":0}]}`)
	res := runCLI(t, "--format", "json", "state", "import", path)
	require.Equal(t, ExitFailure, res.code)
	env := decodeEnvelope(t, res.stdout, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeMalformed, env.Error.Code)

	res = runCLI(t, "state", "import", writeInput(t, "garbage.json", "{"))
	assert.Equal(t, ExitCommandError, res.code)

	assert.Equal(t, "A -> B (2021-01-01)\n", mustRun(t, "resolve", "A"))
}

func TestTraceFile(t *testing.T) {
	isolate(t)
	mustRun(t, "--trace-file", "trace.jsonl", "add", "A", "B", "--date", "2021-01-01")

	data, err := os.ReadFile("trace.jsonl")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"open"`)
	assert.Contains(t, lines[1], `"add_replacement"`)
}

func TestConfigFile(t *testing.T) {
	isolate(t)
	cfgPath := writeInput(t, "custom.yaml", "storage:\n  driver: sqlite\n  sqlite_path: from-config.db\n")
	t.Setenv("REPLACECHAIN_STORAGE_DRIVER", "")

	mustRun(t, "--config", cfgPath, "add", "A", "B", "--date", "2021-01-01")
	_, err := os.Stat("from-config.db")
	require.NoError(t, err)
	assert.Equal(t, "A -> B (2021-01-01)\n", mustRun(t, "--config", cfgPath, "resolve", "A"))

	res := runCLI(t, "--config", "missing.yaml", "list")
	assert.Equal(t, ExitCommandError, res.code)
}

func TestServeStopsOnCancel(t *testing.T) {
	isolate(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan cliResult, 1)
	go func() { done <- runCLIContext(t, ctx, "serve", "--addr", "127.0.0.1:0") }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		assert.Equal(t, ExitSuccess, res.code, res.stderr)
		assert.Contains(t, res.stderr, "http server listening")
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
