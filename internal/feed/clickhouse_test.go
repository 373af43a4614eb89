package feed

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/catalogspectre/pkg/config"
)

type queryCall struct {
	query string
	args  []driver.NamedValue
}

type mockState struct {
	mu             sync.Mutex
	pages          [][][]driver.Value
	calls          []queryCall
	queryErr       error
	queryErrByCall map[int]error
}

type mockDriver struct {
	state *mockState
}

func (d *mockDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{state: d.state}, nil
}

type mockConn struct {
	state *mockState
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *mockConn) Close() error {
	return nil
}

func (c *mockConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	copiedArgs := make([]driver.NamedValue, len(args))
	copy(copiedArgs, args)
	c.state.calls = append(c.state.calls, queryCall{query: query, args: copiedArgs})
	idx := len(c.state.calls) - 1

	if c.state.queryErr != nil {
		return nil, c.state.queryErr
	}
	if err, ok := c.state.queryErrByCall[idx]; ok {
		return nil, err
	}

	// Failed calls do not consume a page
	page := idx - len(c.state.queryErrByCall)
	if page < 0 || page >= len(c.state.pages) {
		return &mockRows{}, nil
	}
	return &mockRows{values: c.state.pages[page]}, nil
}

var _ driver.QueryerContext = (*mockConn)(nil)

var driverCounter uint64

func newMockDB(t *testing.T, state *mockState) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("feedmockdb-%d", atomic.AddUint64(&driverCounter, 1))
	sql.Register(name, &mockDriver{state: state})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

type mockRows struct {
	values [][]driver.Value
	idx    int
}

func (r *mockRows) Columns() []string {
	return []string{"entity_ref", "event_date", "view_count", "user_id", "is_internal"}
}

func (r *mockRows) Close() error {
	return nil
}

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func eventRow(ref string, views int64, user any) []driver.Value {
	return []driver.Value{
		ref,
		time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		views,
		user,
		int64(0),
	}
}

func testFeed(db *sql.DB, batchSize int, timeout time.Duration) *ClickHouseFeed {
	cfg := config.DefaultConfig()
	cfg.FeedTimeout = timeout
	cfg.FeedLookback = 30 * 24 * time.Hour
	return &ClickHouseFeed{
		conn:      db,
		config:    cfg,
		table:     "analytics.view_events",
		batchSize: batchSize,
		retry: retryPolicy{
			maxAttempts:    3,
			initialBackoff: time.Millisecond,
			maxBackoff:     2 * time.Millisecond,
		},
	}
}

func TestQueryPagination(t *testing.T) {
	state := &mockState{pages: [][][]driver.Value{
		{eventRow("/sql/dashboards/1", 3, "u1"), eventRow("/sql/dashboards/2", 1, nil)},
		{eventRow("/sql/dashboards/1", 2, "u2")},
	}}
	db := newMockDB(t, state)

	events, err := testFeed(db, 2, time.Minute).Query(context.Background(), "acme.io", "/sql/dashboards/")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[1].UserID != "" {
		t.Fatalf("expected null user id to scan as empty, got %q", events[1].UserID)
	}

	state.mu.Lock()
	calls := append([]queryCall(nil), state.calls...)
	state.mu.Unlock()

	if len(calls) != 2 {
		t.Fatalf("expected 2 query calls, got %d", len(calls))
	}
	for i, call := range calls {
		if !strings.Contains(call.query, "FROM analytics.view_events") {
			t.Fatalf("expected query to target the feed table, got %s", call.query)
		}
		if len(call.args) != 5 {
			t.Fatalf("expected 5 args, got %d", len(call.args))
		}
		if call.args[0].Value != "acme.io" || call.args[1].Value != "/sql/dashboards/" {
			t.Fatalf("unexpected domain/prefix args: %v %v", call.args[0].Value, call.args[1].Value)
		}
		if got := toInt(call.args[2].Value); got != 30 {
			t.Fatalf("expected lookback of 30 days, got %d", got)
		}
		if got := toInt(call.args[4].Value); got != i*2 {
			t.Fatalf("expected offset %d, got %d", i*2, got)
		}
	}
}

func TestQuerySkipsUnscannableRows(t *testing.T) {
	state := &mockState{pages: [][][]driver.Value{
		{
			eventRow("/sql/dashboards/1", 3, "u1"),
			{"/sql/dashboards/2", "not-a-date", int64(1), nil, int64(0)},
			eventRow("", 4, nil),
		},
	}}
	db := newMockDB(t, state)

	events, err := testFeed(db, 100, time.Minute).Query(context.Background(), "acme.io", "/")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 || events[0].EntityRef != "/sql/dashboards/1" {
		t.Fatalf("expected only the valid event, got %+v", events)
	}
}

func TestQueryRetriesTransientErrors(t *testing.T) {
	state := &mockState{
		pages:          [][][]driver.Value{{eventRow("/sql/dashboards/1", 1, "u1")}},
		queryErrByCall: map[int]error{0: errors.New("i/o timeout")},
	}
	db := newMockDB(t, state)

	events, err := testFeed(db, 100, 5*time.Second).Query(context.Background(), "acme.io", "/")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	state.mu.Lock()
	callCount := len(state.calls)
	state.mu.Unlock()
	if callCount != 2 {
		t.Fatalf("expected 2 query attempts, got %d", callCount)
	}
}

func TestQueryAuthErrorsFailFast(t *testing.T) {
	state := &mockState{
		queryErrByCall: map[int]error{0: errors.New("code: 516, message: Authentication failed")},
	}
	db := newMockDB(t, state)

	_, err := testFeed(db, 100, 5*time.Second).Query(context.Background(), "acme.io", "/")
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "authentication failed") {
		t.Fatalf("expected auth failure error, got %v", err)
	}

	state.mu.Lock()
	callCount := len(state.calls)
	state.mu.Unlock()
	if callCount != 1 {
		t.Fatalf("expected auth error to fail fast (1 attempt), got %d", callCount)
	}
}

func TestQueryHonorsTotalTimeout(t *testing.T) {
	state := &mockState{queryErr: errors.New("i/o timeout")}
	db := newMockDB(t, state)

	feed := testFeed(db, 100, 20*time.Millisecond)
	feed.retry.initialBackoff = 200 * time.Millisecond
	feed.retry.maxBackoff = 200 * time.Millisecond

	_, err := feed.Query(context.Background(), "acme.io", "/")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout error, got %v", err)
	}

	state.mu.Lock()
	callCount := len(state.calls)
	state.mu.Unlock()
	if callCount != 1 {
		t.Fatalf("expected timeout to stop retries after first attempt, got %d calls", callCount)
	}
}

func TestNewClickHouseFeedRejectsBadTableName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.FeedDSN = "clickhouse://localhost:9000/default"
	cfg.FeedTable = "events; DROP TABLE x"

	if _, err := NewClickHouseFeed(cfg); err == nil || !strings.Contains(err.Error(), "invalid feed table name") {
		t.Fatalf("expected invalid table name error, got %v", err)
	}
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case uint64:
		return int(v)
	default:
		return 0
	}
}
