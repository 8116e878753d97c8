package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:          srv.URL + "/get",
		MOTDURL:          srv.URL + "/api",
		TimeoutMS:        2000,
		MOTDTimeoutMS:    2000,
		Retries:          2,
		RetryDelayMS:     1,
		MOTDRetries:      0,
		MOTDRetryDelayMS: 1,
		Timezone:         "UTC",
	}, nil)
}

func TestListServers(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[
			{"uuid":"u1","name":"§aGreen","host":"play.example.com","port":"19132","online":true,"player_count":"7"},
			{"uuid":"u2","name":"Two","host":"two.example.com","port":19133,"online":false,"player_count":null}
		]}`))
	}))
	servers, err := c.ListServers(context.Background())
	if err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if servers[0].Port != 19132 || servers[0].PlayerCount != 7 || !servers[0].Online {
		t.Fatalf("string counters should decode, got %+v", servers[0])
	}
	if servers[1].PlayerCount != 0 || servers[1].Address() != "two.example.com:19133" {
		t.Fatalf("unexpected second server %+v", servers[1])
	}
}

func TestListServersFailureStatus(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"maintenance"}`))
	}))
	if _, err := c.ListServers(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	servers, err := c.ListServers(context.Background())
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if len(servers) != 0 || servers == nil {
		t.Fatalf("expected empty non-nil list")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	_, err := c.ListServers(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 1 try + 2 retries, got %d", got)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	if _, err := c.GetServer(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("404 should not be retried, got %d calls", got)
	}
}

func TestGetServerShapes(t *testing.T) {
	cases := map[string]string{
		"object": `{"status":"success","data":{"uuid":"abc","name":"Obj","host":"h","port":1}}`,
		"array":  `{"status":"success","data":[{"uuid":"abc","name":"Obj","host":"h","port":1}]}`,
	}
	for name, body := range cases {
		body := body
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("uuid") != "abc" {
				t.Errorf("uuid query missing: %s", r.URL.RawQuery)
			}
			w.Write([]byte(body))
		}))
		srv, err := c.GetServer(context.Background(), "abc")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if srv.Name != "Obj" || srv.Address() != "h:1" {
			t.Fatalf("%s: unexpected server %+v", name, srv)
		}
	}

	empty := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	if _, err := empty.GetServer(context.Background(), "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty data should be ErrNotFound, got %v", err)
	}
}

func TestGetHistory(t *testing.T) {
	nested := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"uuid":"a","status_history":[
			{"query_time":"2025-03-01 12:05:00","player_count":"4"},
			{"query_time":"2025-03-01T12:00:00Z","player_count":3},
			{"query_time":"yesterday","player_count":9}
		]}}`))
	}))
	records, err := nested.GetHistory(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 raw records, got %d", len(records))
	}
	samples := Samples(records, nested.Location())
	if len(samples) != 2 {
		t.Fatalf("unparsable time should be dropped, got %d samples", len(samples))
	}
	want := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	if !samples[0].Timestamp.Equal(want) || samples[0].Value != 4 {
		t.Fatalf("unexpected sample %+v", samples[0])
	}

	topLevel := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[],"status_history":[{"query_time":"2025-03-01 12:00:00","player_count":1}]}`))
	}))
	records, err = topLevel.GetHistory(context.Background(), "a")
	if err != nil || len(records) != 1 {
		t.Fatalf("top-level history: %v %v", records, err)
	}

	none := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"uuid":"a"}}`))
	}))
	records, err = none.GetHistory(context.Background(), "a")
	if err != nil || records == nil || len(records) != 0 {
		t.Fatalf("missing history should be empty, got %v %v", records, err)
	}
}

func TestGetMOTDCleansFields(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api" || r.URL.Query().Get("host") != "play.example.com:19132" {
			t.Errorf("unexpected request %s", r.URL)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "online\x00",
			"motd":     " §bHello\x00\x00 ",
			"version":  "1.21.0",
			"online":   12,
			"max":      "50",
			"gamemode": "Survival\x00",
			"delay":    38,
		})
	}))
	info, err := c.GetMOTD(context.Background(), "play.example.com:19132")
	if err != nil {
		t.Fatalf("GetMOTD: %v", err)
	}
	if info.Motd != "§bHello" || info.Gamemode != "Survival" || !info.IsOnline() {
		t.Fatalf("fields not cleaned: %+v", info)
	}
	if info.Online != 12 || info.Max != 50 || info.Delay != 38 {
		t.Fatalf("counters not decoded: %+v", info)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ListServers(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFlexInt(t *testing.T) {
	cases := map[string]int{
		`12`:      12,
		`"12"`:    12,
		`"12 ab"`: 12,
		`"n/a"`:   0,
		`null`:    0,
		`true`:    1,
		`3.9`:     3,
		`"-4"`:    -4,
	}
	for raw, want := range cases {
		var f FlexInt
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if int(f) != want {
			t.Fatalf("%s decoded to %d, want %d", raw, f, want)
		}
	}
}
