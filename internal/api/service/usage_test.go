package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/geofleet/geofleet/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestUsageServiceFlushOnStop(t *testing.T) {
	st := newTestStore(t)
	svc := service.NewUsageService(st, discardLogger(), time.Hour)

	svc.Start()
	svc.Record(42)
	svc.Record(42)
	svc.Record(7)
	svc.Stop()

	day := time.Now().UTC().Format("2006-01-02")

	n, err := st.UsageStats().GetRequests(context.Background(), day, 42)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = st.UsageStats().GetRequests(context.Background(), day, 7)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestHousekeepingRemovesExpiredSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user := createUser(t, st, domain.User{Email: "alice@example.com"}, "pass")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := domain.Session{ID: idx.New().String(), UserID: user.ID, Expiration: &past, CreatedAt: time.Now()}
	live := domain.Session{ID: idx.New().String(), UserID: user.ID, Expiration: &future, CreatedAt: time.Now()}
	require.NoError(t, st.Sessions().CreateSession(ctx, expired))
	require.NoError(t, st.Sessions().CreateSession(ctx, live))

	svc := service.NewHousekeepingService(st, discardLogger(), time.Hour, time.Hour)
	svc.Start()
	svc.Stop()

	_, err := st.Sessions().GetSession(ctx, live.ID)
	require.NoError(t, err)
}

func TestAuditServiceRecordsEvents(t *testing.T) {
	st := newTestStore(t)
	svc := service.NewAuditService(st, discardLogger())
	ctx := context.Background()

	user := createUser(t, st, domain.User{Email: "alice@example.com"}, "pass")

	svc.LoginSuccess(ctx, user.ID, "203.0.113.9:1234")
	svc.LoginFailure(ctx, "203.0.113.9:1234")
	svc.Logout(ctx, user.ID, "203.0.113.9:1234")

	// Pruning everything recorded above must not fail.
	require.NoError(t, st.AuditLog().DeleteEventsBefore(ctx, time.Now().Add(time.Minute)))
}
