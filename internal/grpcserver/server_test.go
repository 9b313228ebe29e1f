package grpcserver

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"carddash/internal/dashboard"
	"carddash/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubLoader struct {
	snap models.Snapshot
	err  error
}

func (l stubLoader) Load(context.Context) (models.Snapshot, error) {
	return l.snap, l.err
}

func collection() models.Snapshot {
	mk := func(name, rarity, feature string) models.Card {
		return models.Card{Name: models.NewText(name), Rarity: models.NewText(rarity), Feature: models.NewText(feature)}
	}
	return models.Snapshot{ID: "snap-1", Source: "stub", Cards: []models.Card{
		mk("Zetton", "R", "Kaiju"),
		mk("Ultraman", "R", "Ultra Hero"),
		mk("Gomora", "SR", "Kaiju"),
	}}
}

func dial(t *testing.T, loader dashboard.Loader) (*Client, healthpb.HealthClient) {
	t.Helper()

	var srv *Server
	session := dashboard.NewSession(
		dashboard.WithLoader(loader),
		dashboard.WithObserver(func(ev dashboard.ReloadEvent) { srv.OnReload(ev) }),
	)
	srv = NewServer(session, nil)

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(srv)
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		gs.Stop()
	})
	return NewClient(conn), healthpb.NewHealthClient(conn)
}

func TestReloadAndDashboard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, hc := dial(t, stubLoader{snap: collection()})

	h, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, h.GetStatus())

	out, err := client.Reload(ctx)
	require.NoError(t, err)
	summary := out.GetFields()["summary"].GetStructValue().GetFields()
	assert.InDelta(t, 3, summary["displayed"].GetNumberValue(), 0)
	assert.Equal(t, "snap-1", out.GetFields()["snapshot"].GetStructValue().GetFields()["id"].GetStringValue())

	h, err = hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, h.GetStatus())

	req, err := structpb.NewStruct(map[string]any{"rarity": "SR"})
	require.NoError(t, err)
	out, err = client.GetDashboard(ctx, req)
	require.NoError(t, err)
	summary = out.GetFields()["summary"].GetStructValue().GetFields()
	assert.InDelta(t, 1, summary["displayed"].GetNumberValue(), 0)
	assert.InDelta(t, 3, summary["total"].GetNumberValue(), 0)
	assert.Len(t, out.GetFields()["charts"].GetListValue().GetValues(), 11)

	out, err = client.GetDashboard(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.InDelta(t, 3, out.GetFields()["summary"].GetStructValue().GetFields()["displayed"].GetNumberValue(), 0)

	opts, err := client.GetOptions(ctx)
	require.NoError(t, err)
	rarities := opts.GetFields()["rarities"].GetListValue().AsSlice()
	assert.Equal(t, []any{"R", "SR"}, rarities)
}

func TestReloadFailure(t *testing.T) {
	t.Parallel()

	client, _ := dial(t, stubLoader{err: errors.New("status 503")})

	_, err := client.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "status 503")
}

func TestCriteriaFrom(t *testing.T) {
	t.Parallel()

	req, err := structpb.NewStruct(map[string]any{"q": "kai", "section": "BP01", "rarity": 3.0})
	require.NoError(t, err)

	c := criteriaFrom(req)
	assert.Equal(t, "kai", c.Search)
	assert.Equal(t, "BP01", c.Section)
	assert.Empty(t, c.Rarity, "non-string values are ignored")
	assert.True(t, criteriaFrom(nil).IsEmpty())
}
