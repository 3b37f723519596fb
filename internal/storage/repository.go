package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertPricePointSQL = `INSERT INTO price_points (chain, price, ts)
    VALUES ($1, $2, $3);`

	listPricePointsSinceSQL = `SELECT chain, price, ts
    FROM price_points
    WHERE chain = $1
      AND ts > $2
    ORDER BY ts;`

	listRecentPricePointsSQL = `SELECT chain, price, ts
    FROM price_points
    WHERE chain = $1
    ORDER BY ts DESC
    LIMIT $2;`

	clearPricePointsSQL = `DELETE FROM price_points WHERE chain = $1;`

	countPricePointsSQL = `SELECT COUNT(*) FROM price_points WHERE chain = $1;`

	insertAlertRegistrationSQL = `INSERT INTO alert_registrations (
        chain,
        threshold_dollar,
        email
    ) VALUES (
        $1, $2, $3
    )
    RETURNING id, chain, threshold_dollar, email, created_at;`

	listAlertRegistrationsByChainSQL = `SELECT
        id,
        chain,
        threshold_dollar,
        email,
        created_at
    FROM alert_registrations
    WHERE chain = $1
    ORDER BY id;`
)

// PricePointStore defines operations for price sample persistence.
type PricePointStore interface {
	InsertPricePoint(ctx context.Context, point PricePoint) error
	InsertPricePoints(ctx context.Context, points []PricePoint) error
	ListPricePointsSince(ctx context.Context, c chain.Chain, since time.Time) ([]PricePoint, error)
	ListRecentPricePoints(ctx context.Context, c chain.Chain, limit int) ([]PricePoint, error)
	ClearPricePoints(ctx context.Context, c chain.Chain) error
	CountPricePoints(ctx context.Context, c chain.Chain) (int64, error)
}

// AlertRegistry defines operations for alert registration persistence.
type AlertRegistry interface {
	InsertAlertRegistration(ctx context.Context, reg AlertRegistration) (AlertRegistration, error)
	ListAlertRegistrationsByChain(ctx context.Context, c chain.Chain) ([]AlertRegistration, error)
}

// Store aggregates access to price points and alert registrations.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertPricePoint appends one price sample.
func (s *Store) InsertPricePoint(ctx context.Context, point PricePoint) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertPricePointSQL,
		point.Chain.String(),
		point.Price.String(),
		point.Timestamp,
	); execErr != nil {
		return fmt.Errorf("insert price point: %w", execErr)
	}
	return nil
}

// InsertPricePoints appends a batch of samples in order. Used by backfill.
func (s *Store) InsertPricePoints(ctx context.Context, points []PricePoint) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, point := range points {
		batch.Queue(insertPricePointSQL,
			point.Chain.String(),
			point.Price.String(),
			point.Timestamp,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range points {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("insert price points batch: %w", execErr)
		}
	}
	return nil
}

// ListPricePointsSince lists a chain's samples newer than the cutoff,
// ordered by timestamp ascending.
func (s *Store) ListPricePointsSince(ctx context.Context, c chain.Chain, since time.Time) ([]PricePoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricePointsSinceSQL, c.String(), since)
	if queryErr != nil {
		return nil, fmt.Errorf("list price points since: %w", queryErr)
	}
	defer rows.Close()

	return collectPricePoints(rows)
}

// ListRecentPricePoints lists a chain's most recent samples, newest first.
func (s *Store) ListRecentPricePoints(ctx context.Context, c chain.Chain, limit int) ([]PricePoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPricePointsSQL, c.String(), limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent price points: %w", queryErr)
	}
	defer rows.Close()

	return collectPricePoints(rows)
}

// ClearPricePoints deletes a chain's samples. Used only at backfill time.
func (s *Store) ClearPricePoints(ctx context.Context, c chain.Chain) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, clearPricePointsSQL, c.String()); execErr != nil {
		return fmt.Errorf("clear price points: %w", execErr)
	}
	return nil
}

// CountPricePoints counts a chain's stored samples.
func (s *Store) CountPricePoints(ctx context.Context, c chain.Chain) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countPricePointsSQL, c.String()).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count price points: %w", scanErr)
	}
	return count, nil
}

// InsertAlertRegistration persists a new threshold registration.
func (s *Store) InsertAlertRegistration(ctx context.Context, reg AlertRegistration) (AlertRegistration, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRegistration{}, err
	}

	row := pool.QueryRow(ctx, insertAlertRegistrationSQL,
		reg.Chain.String(),
		reg.ThresholdDollar.String(),
		reg.Email,
	)

	saved, scanErr := scanAlertRegistration(row)
	if scanErr != nil {
		return AlertRegistration{}, fmt.Errorf("insert alert registration: %w", scanErr)
	}
	return saved, nil
}

// ListAlertRegistrationsByChain lists every registration for a chain in
// insertion order.
func (s *Store) ListAlertRegistrationsByChain(ctx context.Context, c chain.Chain) ([]AlertRegistration, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertRegistrationsByChainSQL, c.String())
	if queryErr != nil {
		return nil, fmt.Errorf("list alert registrations: %w", queryErr)
	}
	defer rows.Close()

	regs := make([]AlertRegistration, 0)
	for rows.Next() {
		reg, scanErr := scanAlertRegistration(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		regs = append(regs, reg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return regs, nil
}

func collectPricePoints(rows pgx.Rows) ([]PricePoint, error) {
	points := make([]PricePoint, 0)
	for rows.Next() {
		var (
			chainName string
			priceStr  string
			ts        time.Time
		)
		if err := rows.Scan(&chainName, &priceStr, &ts); err != nil {
			return nil, err
		}

		parsedChain, err := chain.Parse(chainName)
		if err != nil {
			return nil, fmt.Errorf("parse stored chain: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored price: %w", err)
		}

		points = append(points, PricePoint{Chain: parsedChain, Price: price, Timestamp: ts})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

func scanAlertRegistration(row pgx.Row) (AlertRegistration, error) {
	var (
		reg          AlertRegistration
		chainName    string
		thresholdStr string
	)
	if err := row.Scan(
		&reg.ID,
		&chainName,
		&thresholdStr,
		&reg.Email,
		&reg.CreatedAt,
	); err != nil {
		return AlertRegistration{}, err
	}

	parsedChain, err := chain.Parse(chainName)
	if err != nil {
		return AlertRegistration{}, fmt.Errorf("parse stored chain: %w", err)
	}
	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil {
		return AlertRegistration{}, fmt.Errorf("parse threshold: %w", err)
	}

	reg.Chain = parsedChain
	reg.ThresholdDollar = threshold
	return reg, nil
}

var _ PricePointStore = (*Store)(nil)
var _ AlertRegistry = (*Store)(nil)
