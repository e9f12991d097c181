package admin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/dripline/pkg/api"
)

// fakeEngine serves canned read-path data; the panel never touches the rest
// of the Engine surface.
type fakeEngine struct {
	api.Engine

	users  []*api.UserRecord
	events map[int64][]api.EventLogEntry
}

func (e *fakeEngine) ListUsers(ctx context.Context) ([]*api.UserRecord, error) {
	return e.users, nil
}

func (e *fakeEngine) ListEvents(ctx context.Context, userID int64) ([]api.EventLogEntry, error) {
	return e.events[userID], nil
}

func newTestServer(t *testing.T, eng api.Engine) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(eng, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestUsersPageListsUsers(t *testing.T) {
	eng := &fakeEngine{
		users: []*api.UserRecord{
			{UserID: 42, Username: "alice", Source: "ads", Stage: api.StageCaseStory,
				Subscribed: api.SubscriptionYes, LastAction: time.Now()},
			{UserID: 77, Source: "organic", Stage: api.StageStart},
		},
	}
	srv := newTestServer(t, eng)

	code, body := get(t, srv.URL+"/panel-database")
	require.Equal(t, http.StatusOK, code)

	require.Contains(t, body, "@alice")
	require.Contains(t, body, "case_story")
	require.Contains(t, body, "✅")
	// A user without a username is shown by id.
	require.Contains(t, body, ">77<")
	require.Contains(t, body, "/panel-database/user/42")
}

func TestUserHistoryHidesInternalEvents(t *testing.T) {
	eng := &fakeEngine{
		events: map[int64][]api.EventLogEntry{
			42: {
				{UserID: 42, Timestamp: time.Now(), Action: "start", Details: "source=ads"},
				{UserID: 42, Timestamp: time.Now(), Action: "bot_stage_got_material"},
				{UserID: 42, Timestamp: time.Now(), Action: "system_send_error", Details: "boom"},
				{UserID: 42, Timestamp: time.Now(), Action: "auto_scheduled", Details: "x"},
				{UserID: 42, Timestamp: time.Now(), Action: "get_material"},
			},
		},
	}
	srv := newTestServer(t, eng)

	code, body := get(t, srv.URL+"/panel-database/user/42")
	require.Equal(t, http.StatusOK, code)

	require.Contains(t, body, "start")
	require.Contains(t, body, "get_material")
	require.NotContains(t, body, "bot_stage_got_material")
	require.NotContains(t, body, "system_send_error")
	require.NotContains(t, body, "auto_scheduled")
}

func TestUserHistoryEmptyAndBadID(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{events: map[int64][]api.EventLogEntry{}})

	code, body := get(t, srv.URL+"/panel-database/user/5")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "No records")

	code, _ = get(t, srv.URL+"/panel-database/user/not-a-number")
	require.Equal(t, http.StatusBadRequest, code)
}
