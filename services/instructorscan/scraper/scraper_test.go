package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"instructorscan-backend/lib/telemetry"
	"instructorscan-backend/lib/timezone"
	"instructorscan-backend/services/instructorscan/snapshot"

	"github.com/stretchr/testify/require"
)

const fakeLoginPage = `
<html><body>
<form name="login" action="/login" method="post">
	<input type="hidden" name="__VIEWSTATE" value="state-token">
	<input type="text" name="txtEmailMM" value="">
	<input type="password" name="txtPasswordMM" value="">
</form>
</body></html>`

type fakeSite struct {
	t           *testing.T
	logins      atomic.Int64
	rosterCalls atomic.Int64
	rosterBody  string
	eventsBody  string
}

func (s *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fakeLoginPage)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(s.t, r.ParseForm())
		// hidden fields must be echoed back, credentials overridden
		require.Equal(s.t, "state-token", r.PostForm.Get("__VIEWSTATE"))
		require.Equal(s.t, "pilot@example.com", r.PostForm.Get("txtEmailMM"))
		require.Equal(s.t, "hunter2", r.PostForm.Get("txtPasswordMM"))
		s.logins.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
	})
	mux.HandleFunc("POST /roster", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(s.t, r.ParseForm())
		require.Contains(s.t, r.PostForm.Get("start_date"), "GMT+0100 (British Summer Time)")
		s.rosterCalls.Add(1)
		fmt.Fprint(w, s.rosterBody)
	})
	mux.HandleFunc("POST /bookings", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(s.t, r.URL.RawQuery, "start=")
		require.Contains(s.t, r.URL.RawQuery, "end=")
		fmt.Fprint(w, s.eventsBody)
	})
	return mux
}

func newTestFetcher(t *testing.T, site *fakeSite) (Fetcher, *Client) {
	server := httptest.NewServer(site.handler())
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{
		RootUrl:       server.URL,
		Username:      "pilot@example.com",
		Password:      "hunter2",
		LoginPage:     "/login.aspx",
		LoginEndpoint: "/login",
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	fetcher := NewFetcher(client, FetcherOptions{
		Instructors: []Instructor{
			{Initials: "AB", Name: "Alice Baker"},
			{Initials: "CD", Name: "Carol Davis"},
		},
		RosterEndpoint:   "/roster",
		BookingsEndpoint: "/bookings?start=[start-date]&end=[end-date]",
		RequestDelay:     0,
		OpeningTime:      "09:00",
		ClosingTime:      "11:00",
	})
	return fetcher, client
}

func TestFetchRange(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:instructorscan/scraper")
	defer cleanup()

	site := &fakeSite{
		t: t,
		// capitalized keys on purpose: field matching is case-insensitive
		rosterBody: `[
			{"Id": 7, "Title": "Alice Baker", "background_colour": "#fff", "colour": null},
			{"Id": 9, "Title": "Carol Davis"}
		]`,
		eventsBody: `[
			{"resource_id": 7, "start": "2024-05-01T09:00:00", "end": "2024-05-01T10:00:00"},
			{"resource_id": null, "start": "2024-05-01T10:00:00", "end": "2024-05-01T11:00:00"},
			{"resource_id": 9, "start": "2024-05-02T09:30:00", "end": "2024-05-02T10:00:00"}
		]`,
	}
	fetcher, _ := newTestFetcher(t, site)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, timezone.Location)
	end := time.Date(2024, 5, 2, 0, 0, 0, 0, timezone.Location)

	set, err := fetcher.FetchRange(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.Equal(t, int64(2), site.rosterCalls.Load())

	day1 := set[0]
	require.Equal(t, "20240501", day1.Key())
	require.Len(t, day1.Instructors, 2)

	alice := day1.Instructors[0]
	require.Equal(t, "AB", alice.Instructor)
	require.Equal(t, []snapshot.Slot{
		{Time: "09:00", Status: snapshot.StatusBooked},
		{Time: "09:30", Status: snapshot.StatusBooked},
		{Time: "10:00", Status: snapshot.StatusFree},
		{Time: "10:30", Status: snapshot.StatusFree},
	}, alice.Slots)

	// the unassigned 10:00 walk-in event must not have touched anyone
	carol := day1.Instructors[1]
	require.Equal(t, "CD", carol.Instructor)
	for _, s := range carol.Slots {
		require.Equal(t, snapshot.StatusFree, s.Status)
	}

	day2 := set[1]
	carol2 := day2.Instructors[1]
	require.Equal(t, []snapshot.Slot{
		{Time: "09:00", Status: snapshot.StatusFree},
		{Time: "09:30", Status: snapshot.StatusBooked},
		{Time: "10:00", Status: snapshot.StatusFree},
		{Time: "10:30", Status: snapshot.StatusFree},
	}, carol2.Slots)
}

func TestFetchRangeIdempotent(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:instructorscan/scraper")
	defer cleanup()

	site := &fakeSite{
		t:          t,
		rosterBody: `[{"id": 7, "title": "Alice Baker"}]`,
		eventsBody: `[{"resource_id": 7, "start": "2024-05-01T09:00:00", "end": "2024-05-01T09:30:00"}]`,
	}
	fetcher, _ := newTestFetcher(t, site)

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, timezone.Location)
	first, err := fetcher.FetchRange(context.Background(), day, day)
	require.NoError(t, err)
	second, err := fetcher.FetchRange(context.Background(), day, day)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.True(t, first[i].Date.Equal(second[i].Date))
		require.Equal(t, first[i].Instructors, second[i].Instructors)
	}

	// one session for both fetches
	require.Equal(t, int64(1), site.logins.Load())
}

func TestLoginFormMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(ClientOptions{
		RootUrl:   server.URL,
		LoginPage: "/login.aspx",
	})
	require.NoError(t, err)
	defer client.Close()

	err = client.EnsureLogin(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestPostFormStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /roster", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(ClientOptions{RootUrl: server.URL})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.PostForm(context.Background(), "/roster", map[string]string{"start_date": "x"})
	var statusErr StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestFetchRangeCancelled(t *testing.T) {
	site := &fakeSite{
		t:          t,
		rosterBody: `[]`,
		eventsBody: `[]`,
	}
	fetcher, _ := newTestFetcher(t, site)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.FetchRange(
		ctx,
		time.Date(2024, 5, 1, 0, 0, 0, 0, timezone.Location),
		time.Date(2024, 5, 3, 0, 0, 0, 0, timezone.Location),
	)
	require.Error(t, err)
}
