package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"carddash/internal/dashboard"
	synchub "carddash/internal/sync"
	"carddash/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseRegisterMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"register", `{"type":"register","client_id":"tablet"}`, false},
		{"unregister", `{"type":"unregister","client_id":"tablet"}`, false},
		{"missing id", `{"type":"register"}`, true},
		{"missing type", `{"client_id":"tablet"}`, true},
		{"not json", `hello`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseRegisterMessage([]byte(tc.raw))
			assert.Equal(t, tc.wantErr, err != nil, err)
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	b := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4001}

	r.Register("tablet", a)
	r.Register("tablet", b)
	r.Register("", a)
	r.Register("phone", nil)

	clients := r.Snapshot()
	require.Len(t, clients, 1)
	assert.Equal(t, b, clients[0].Addr)

	r.Remove("tablet")
	assert.Zero(t, r.Len())
}

func TestRegistryRemoveAt(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	old := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	moved := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4001}

	r.Register("tablet", moved)
	assert.False(t, r.RemoveAt("tablet", old))
	assert.False(t, r.RemoveAt("phone", moved))
	assert.Equal(t, 1, r.Len())

	same := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4001}
	assert.True(t, r.RemoveAt("tablet", same))
	assert.Zero(t, r.Len())
}

func TestFailedSendKeepsReregisteredClient(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	require.NoError(t, conn.Close()) // every write now fails

	srv := NewServer("127.0.0.1:0", nil, nil)
	old := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	moved := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4001}

	// the send to old was in flight when the client registered again
	srv.Registry.Register("tablet", moved)
	srv.sendWithRetry(conn, Client{ID: "tablet", Addr: old}, []byte(`{}`))
	require.Equal(t, 1, srv.Registry.Len())
	assert.Equal(t, moved, srv.Registry.Snapshot()[0].Addr)

	srv.sendWithRetry(conn, Client{ID: "tablet", Addr: moved}, []byte(`{}`))
	assert.Zero(t, srv.Registry.Len())
}

func TestBroadcastWhenStoppedIsNoop(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:0", nil, nil)
	srv.Registry.Register("tablet", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000})
	srv.OnReload(dashboard.ReloadEvent{Generation: 1})
	assert.Equal(t, 1, srv.Registry.Len())
}

func TestServerDeliversReloadEvents(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	srv := NewServer("", nil, nil)
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return at }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, conn) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	client, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte(`{"type":"register","client_id":"tablet"}`))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.OnReload(dashboard.ReloadEvent{
		Generation: 4,
		Snapshot:   models.SnapshotInfo{ID: "snap-1", Source: "http", CardCount: 120},
	})
	srv.OnReload(dashboard.ReloadEvent{Generation: 5, Err: errors.New("upstream 503")})

	buf := make([]byte, maxDatagram)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))

	n, err := client.Read(buf)
	require.NoError(t, err)
	var ok synchub.Event
	require.NoError(t, json.Unmarshal(buf[:n], &ok))
	assert.Equal(t, synchub.Event{
		Type:       synchub.TypeReloaded,
		Snapshot:   "snap-1",
		Source:     "http",
		Cards:      120,
		Generation: 4,
		At:         at,
	}, ok)

	n, err = client.Read(buf)
	require.NoError(t, err)
	var failed synchub.Event
	require.NoError(t, json.Unmarshal(buf[:n], &failed))
	assert.Equal(t, synchub.TypeReloadFailed, failed.Type)
	assert.Equal(t, "upstream 503", failed.Error)

	_, err = client.Write([]byte(`{"type":"unregister","client_id":"tablet"}`))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
