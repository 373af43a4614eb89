package feed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

const defaultBatchSize = 50000

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseFeed reads view events from a ClickHouse table
type ClickHouseFeed struct {
	conn      *sql.DB
	config    *config.Config
	table     string
	batchSize int
	retry     retryPolicy
}

// NewClickHouseFeed connects to the configured feed DSN
func NewClickHouseFeed(cfg *config.Config) (*ClickHouseFeed, error) {
	table := strings.TrimSpace(cfg.FeedTable)
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid feed table name %q", cfg.FeedTable)
	}

	opts, err := clickhouse.ParseDSN(cfg.FeedDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed DSN: %w", err)
	}

	// Set connection pooling
	opts.MaxOpenConns = 10
	opts.MaxIdleConns = 5
	opts.ConnMaxLifetime = time.Hour
	opts.ReadTimeout = 5 * time.Minute
	opts.DialTimeout = 30 * time.Second

	// Readonly users cannot change settings such as max_execution_time
	opts.Settings = nil

	conn := clickhouse.OpenDB(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := withRetry(pingCtx, defaultRetryPolicy(), "ping", func() error { return conn.PingContext(pingCtx) }); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping feed database: %w", err)
	}

	slog.Debug("connected to analytics feed", slog.String("addr", strings.Join(opts.Addr, ",")), slog.String("table", table))

	return &ClickHouseFeed{
		conn:      conn,
		config:    cfg,
		table:     table,
		batchSize: defaultBatchSize,
		retry:     defaultRetryPolicy(),
	}, nil
}

// Query returns non-internal view events of domain whose reference starts
// with pathPrefix, within the configured lookback.
func (f *ClickHouseFeed) Query(ctx context.Context, domain, pathPrefix string) ([]models.FeedEvent, error) {
	lookbackDays := int(f.config.FeedLookback.Hours() / 24)
	if lookbackDays <= 0 {
		lookbackDays = 90
	}

	query := fmt.Sprintf(`
		SELECT
			entity_ref,
			event_date,
			toInt64(view_count) AS view_count,
			user_id,
			toUInt8(is_internal) AS is_internal
		FROM %s
		WHERE domain = ?
		  AND startsWith(entity_ref, ?)
		  AND is_internal = 0
		  AND event_date >= today() - ?
		ORDER BY event_date DESC, entity_ref
		LIMIT ? OFFSET ?
	`, f.table)

	ctx, cancel := withTotalTimeout(ctx, f.config.FeedTimeout)
	defer cancel()

	var events []models.FeedEvent
	offset := 0
	for {
		var batch []models.FeedEvent
		err := withRetry(ctx, f.retry, "query view events", func() error {
			rows, err := f.conn.QueryContext(ctx, query, domain, pathPrefix, lookbackDays, f.batchSize, offset)
			if err != nil {
				return err
			}
			defer rows.Close()

			batch, err = f.processBatch(rows)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("feed query failed at offset %d: %w", offset, err)
		}

		events = append(events, batch...)
		if len(batch) < f.batchSize {
			break
		}
		offset += f.batchSize
	}

	slog.Debug("view events fetched",
		slog.String("domain", domain),
		slog.String("prefix", pathPrefix),
		slog.Int("events", len(events)),
	)
	return events, nil
}

// processBatch scans one page. Rows that fail to scan are skipped.
func (f *ClickHouseFeed) processBatch(rows *sql.Rows) ([]models.FeedEvent, error) {
	var events []models.FeedEvent
	rowNum := 0
	skipped := 0

	for rows.Next() {
		rowNum++
		var (
			event    models.FeedEvent
			userID   sql.NullString
			internal int64
		)
		if err := rows.Scan(&event.EntityRef, &event.Date, &event.ViewCount, &userID, &internal); err != nil {
			skipped++
			if skipped == 1 {
				slog.Warn("failed to scan view event, check the feed table schema",
					slog.Int("row", rowNum),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if event.EntityRef == "" {
			skipped++
			continue
		}

		event.UserID = userID.String
		event.IsInternal = internal != 0
		events = append(events, event)
	}

	if skipped > 0 {
		slog.Warn("skipped problematic view events", slog.Int("skipped", skipped), slog.Int("total", rowNum))
	}

	if err := rows.Err(); err != nil {
		// Keep what was read rather than failing the whole page
		if len(events) > 0 {
			slog.Warn("error during row iteration",
				slog.Int("recovered", len(events)),
				slog.String("error", err.Error()),
			)
			return events, nil
		}
		return nil, err
	}

	return events, nil
}

// Close closes the ClickHouse connection
func (f *ClickHouseFeed) Close() error {
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
