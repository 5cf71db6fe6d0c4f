package source

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vigil/internal/logger"
	"vigil/internal/metrics"
	"vigil/internal/models"
)

// StoreConfig configures the polling store reader.
type StoreConfig struct {
	Driver   string
	DSN      string
	Interval time.Duration
}

const latestVitalsSQL = `
	SELECT temperature, pulse_rate, alcohol_percentage
	FROM vitals ORDER BY id DESC LIMIT 1
`

// StoreReader polls the single most-recent vitals row from an external store.
// Same contract as the file reader: diff against the last-accepted document,
// fan out on change, and tolerate query errors as "no change".
type StoreReader struct {
	db       *sql.DB
	interval time.Duration
	pipeline *Pipeline
}

func NewStoreReader(db *sql.DB, interval time.Duration, pipeline *Pipeline) *StoreReader {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StoreReader{db: db, interval: interval, pipeline: pipeline}
}

// Pipeline returns the reader's ingestion pipeline.
func (s *StoreReader) Pipeline() *Pipeline {
	return s.pipeline
}

// Run polls until the context is cancelled; stopping joins the loop.
func (s *StoreReader) Run(ctx context.Context) {
	log := logger.WithSource(s.pipeline.Name())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("store reader stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *StoreReader) poll(ctx context.Context) {
	log := logger.WithSource(s.pipeline.Name())

	qctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	var temp, pulse, alcohol sql.NullFloat64
	err := s.db.QueryRowContext(qctx, latestVitalsSQL).Scan(&temp, &pulse, &alcohol)
	if errors.Is(err, sql.ErrNoRows) {
		return
	}
	if err != nil {
		metrics.PollErrors.WithLabelValues(s.pipeline.Name()).Inc()
		log.Warn().Err(err).Msg("store unreachable, keeping last document")
		return
	}

	ts := time.Now().UTC()
	doc := models.Document{
		models.KindTemperature: nullableReading(models.KindTemperature, temp, ts),
		models.KindHeartRate:   nullableReading(models.KindHeartRate, pulse, ts),
		models.KindAlcohol:     nullableReading(models.KindAlcohol, alcohol, ts),
	}
	s.pipeline.PublishDocument(doc)
}

func nullableReading(kind models.SensorKind, v sql.NullFloat64, ts time.Time) *models.Reading {
	if !v.Valid {
		return models.EmptyReading(kind, nil, ts)
	}
	return models.NewReading(kind, v.Float64, nil, ts)
}
