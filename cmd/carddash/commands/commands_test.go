package commands

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"carddash/internal/snapshot"
	"carddash/internal/source"
	"carddash/pkg/database"
	"carddash/pkg/models"
)

const fixtureCards = `{"data": [
	{"name": "Zetton", "rarity": "SR", "feature": "Kaiju", "number": "BP01-001", "character_name": "Zetton", "publication_year": 2024},
	{"name": "Ultraman", "rarity": "R", "feature": "Ultra Hero", "number": "BP01-002", "character_name": "Ultraman", "publication_year": 2023, "errata_enable": true},
	{"name": "Alien Baltan", "rarity": "SR", "feature": "Kaiju", "number": "SD01-005", "character_name": "Alien Baltan", "publication_year": 2024}
]}`

// fixture writes the card file and a config pointing at it, returning the
// config path and the database path.
func fixture(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	cardsPath := filepath.Join(dir, "cards.json")
	dbPath := filepath.Join(dir, "data", "carddash.db")
	require.NoError(t, os.WriteFile(cardsPath, []byte(fixtureCards), 0o600))

	config := "source:\n  file: " + cardsPath + "\ndatabase:\n  path: " + dbPath + "\nlog:\n  level: error\n"
	configPath := filepath.Join(dir, "carddash.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	return configPath, dbPath
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatsJSON(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	out, err := run(t, "", "stats", "--config", config, "--rarity", "SR", "--format", "json")
	require.NoError(t, err)

	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "file", report.Snapshot.Source)
	assert.Equal(t, 3, report.Snapshot.CardCount)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Displayed)
	assert.Equal(t, []string{"R", "SR"}, report.Options.Rarities)
	assert.Len(t, report.Charts, 11)
}

func TestStatsYAML(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	out, err := run(t, "", "stats", "--config", config, "--search", "ALIEN", "--format", "yaml")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	summary, ok := doc["summary"].(map[string]any)
	require.True(t, ok, out)
	assert.Equal(t, 1, summary["displayed"])
	assert.Equal(t, 3, summary["total"])
}

func TestStatsTable(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	out, err := run(t, "", "stats", "--config", config)
	require.NoError(t, err)

	assert.Contains(t, out, "Collection")
	assert.Contains(t, out, "Rarity distribution")
	assert.Contains(t, out, "Rarity by set")
	assert.Contains(t, out, "Share")
	assert.Contains(t, out, "BP01")
}

func TestStatsUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "stats", "--format", "xml")
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExportStdout(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	out, err := run(t, "", "export", "--config", config, "--feature", "Kaiju", "--out", "-")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, "name", header[0])
	assert.Equal(t, []string{"set", "errata_enable"}, header[len(header)-2:])

	assert.Equal(t, "Zetton", rows[1][0])
	assert.Equal(t, "BP01", rows[1][len(header)-2])
	assert.Equal(t, "SD01", rows[2][len(header)-2])
	assert.Equal(t, "false", rows[2][len(header)-1])
}

func TestExportFile(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	path := filepath.Join(t.TempDir(), "out", "cards.csv")
	out, err := run(t, "", "export", "--config", config, "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 3 cards")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(b), "\n"))
}

func TestExportJSONFeedsMirror(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	out, err := run(t, "", "export", "--config", config, "--rarity", "R", "--format", "json", "--out", "-")
	require.NoError(t, err)

	cards, err := source.Decode([]byte(out))
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Ultraman", cards[0].Name.String)
	assert.True(t, bool(cards[0].ErrataEnable))
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	csvPath := filepath.Join(t.TempDir(), "cards.csv")
	_, err := run(t, "", "export", "--config", config, "--out", csvPath)
	require.NoError(t, err)

	out, err := run(t, "", "import", "--config", config, csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported snapshot")

	out, err = run(t, "", "stats", "--config", config, "--offline", "--format", "json")
	require.NoError(t, err)
	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "csv", report.Snapshot.Source)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Errata)
	assert.Equal(t, []string{"BP01", "SD01"}, report.Options.Sections)
}

func TestRender(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	path := filepath.Join(t.TempDir(), "site", "dashboard.html")
	out, err := run(t, "", "render", "--config", config, "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "echarts")
	assert.Contains(t, string(b), "Rarity distribution")
}

func TestFetchThenOffline(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)

	out, err := run(t, "", "fetch", "--config", config)
	require.NoError(t, err)
	assert.Contains(t, out, "stored snapshot")
	assert.Contains(t, out, "Total: 1 snapshots")

	out, err = run(t, "", "fetch", "--config", config, "--list")
	require.NoError(t, err)
	assert.NotContains(t, out, "stored snapshot")
	assert.Contains(t, out, "Total: 1 snapshots")

	out, err = run(t, "", "stats", "--config", config, "--offline", "--format", "json")
	require.NoError(t, err)
	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Summary.Total)
}

func TestOfflineWithoutSnapshot(t *testing.T) {
	t.Parallel()

	config, _ := fixture(t)
	_, err := run(t, "", "stats", "--config", config, "--offline")
	require.ErrorIs(t, err, snapshot.ErrNoSnapshot)
}

func TestRetainingStorePrunes(t *testing.T) {
	t.Parallel()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "data.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := snapshot.NewRepo(db)
	store := retainingStore{repo: repo, keep: 2, logger: zap.NewNop()}

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		snap := models.Snapshot{ID: id, Source: "file", FetchedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.Save(context.Background(), snap))
	}

	infos, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "c", infos[0].ID)
	assert.Equal(t, "b", infos[1].ID)
}

func TestToken(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		stdin string
		args  []string
	}{
		"argument": {args: []string{"token", "hunter2"}},
		"stdin":    {stdin: "hunter2\n", args: []string{"token"}},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out, err := run(t, tc.stdin, tc.args...)
			require.NoError(t, err)
			hash := strings.TrimSpace(out)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
		})
	}
}

func TestTokenEmpty(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "token")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestMirrorRouter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(fixtureCards), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte(`{"data": [`), 0o600))

	cases := []struct {
		path string
		want int
	}{
		{good, http.StatusOK},
		{bad, http.StatusInternalServerError},
		{filepath.Join(dir, "missing.json"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		newMirrorRouter(tc.path, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cards", nil))
		assert.Equal(t, tc.want, rec.Code, tc.path)
		if tc.want == http.StatusOK {
			assert.JSONEq(t, fixtureCards, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		}
	}
}

func TestMirrorRequiresFile(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "mirror")
	require.ErrorIs(t, err, ErrNoMirrorFile)
}

func TestPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	emit := printer(&buf, true)
	emit([]byte(`{"type":"welcome"}`))
	emit([]byte("not json"))
	assert.Equal(t, "{\n  \"type\": \"welcome\"\n}\nnot json\n", buf.String())

	buf.Reset()
	printer(&buf, false)([]byte(`{"type":"welcome"}`))
	assert.Equal(t, "{\"type\":\"welcome\"}\n", buf.String())
}

func TestWatchLoopReconnectsUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := watchLoop(ctx, zap.NewNop(), func(context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("connection refused")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
