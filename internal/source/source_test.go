package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carddash/pkg/models"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		body  string
		names []string
	}{
		{"array", `[{"name":"Zetton"},{"name":"Gomora"}]`, []string{"Zetton", "Gomora"}},
		{"data envelope", `{"data":[{"name":"Zetton"}],"total":1}`, []string{"Zetton"}},
		{"object without data", `{"cards":[{"name":"Zetton"}]}`, []string{}},
		{"data not array", `{"data":{"name":"Zetton"}}`, []string{}},
		{"scalar", `42`, []string{}},
		{"null", `null`, []string{}},
		{"empty array", `[]`, []string{}},
		{"non-object elements", `[1, null, {"name":"Zetton"}, "x"]`, []string{"", "", "Zetton", ""}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Decode([]byte(tc.body))
			require.NoError(t, err)
			require.NotNil(t, got)

			names := make([]string, len(got))
			for i, c := range got {
				names[i] = c.Name.String
			}
			assert.Equal(t, tc.names, names)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	for _, body := range []string{``, `[{"name":`, `{"data": [}`, `nope`} {
		_, err := Decode([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestHTTPSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"Zetton","rarity":"SR","publication_year":2024}]`))
	}))
	defer srv.Close()

	cards, err := NewHTTPSource(srv.URL, time.Second).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "SR", cards[0].Rarity.String)
	assert.Equal(t, "2024", cards[0].PublicationYear.String)
}

func TestHTTPSourceStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance window", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, time.Second).FetchAll(context.Background())
	require.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "maintenance window")
}

func TestHTTPSourceMalformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, time.Second).FetchAll(context.Background())
	assert.ErrorContains(t, err, "decode")
}

func TestHTTPSourceCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPSource(srv.URL, time.Second).FetchAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cards.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data":[{"name":"Gomora"}]}`), 0o600))

	cards, err := NewFileSource(path).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Gomora", cards[0].Name.String)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.json")).FetchAll(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type fakeSource struct {
	cards []models.Card
	err   error
}

func (f fakeSource) Name() string { return "fake" }

func (f fakeSource) FetchAll(context.Context) ([]models.Card, error) {
	return f.cards, f.err
}

func TestLoader(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := NewLoader(fakeSource{cards: []models.Card{{Name: models.NewText("Zetton")}}}, nil)
	l.Now = func() time.Time { return at }

	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "fake", snap.Source)
	assert.Equal(t, at, snap.FetchedAt)
	assert.Len(t, snap.Cards, 1)

	again, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, snap.ID, again.ID)
}

func TestLoaderErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := NewLoader(fakeSource{err: boom}, nil).Load(context.Background())
	require.ErrorIs(t, err, boom)

	snap, err := NewLoader(fakeSource{}, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake", snap.Source)
}
