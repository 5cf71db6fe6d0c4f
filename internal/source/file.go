package source

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"vigil/internal/logger"
	"vigil/internal/metrics"
	"vigil/internal/models"
)

// FileConfig configures the polling file reader.
type FileConfig struct {
	Path     string
	Interval time.Duration
	// Watch enables filesystem-event wake-ups between poll ticks.
	Watch bool
}

// FileReader re-reads an external JSON snapshot file on a fixed interval,
// recovers the last structurally complete record from it, and publishes the
// resulting document. Read and parse errors are logged and treated as
// "no change"; the last-accepted document is retained.
type FileReader struct {
	cfg      FileConfig
	pipeline *Pipeline
}

func NewFileReader(cfg FileConfig, pipeline *Pipeline) *FileReader {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &FileReader{cfg: cfg, pipeline: pipeline}
}

// Pipeline returns the reader's ingestion pipeline.
func (f *FileReader) Pipeline() *Pipeline {
	return f.pipeline
}

// Run polls until the context is cancelled. Stopping joins the loop: an
// in-flight poll completes before Run returns.
func (f *FileReader) Run(ctx context.Context) {
	log := logger.WithSource(f.pipeline.Name())

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	events := f.watchEvents(ctx, log)

	f.poll(log)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("file reader stopped")
			return
		case <-ticker.C:
			f.poll(log)
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			f.poll(log)
		}
	}
}

// watchEvents sets up an fsnotify watcher on the snapshot file's directory so
// a rewrite wakes the reader before the next tick. Watching is best effort;
// on any failure the ticker alone drives polling.
func (f *FileReader) watchEvents(ctx context.Context, log zerolog.Logger) <-chan struct{} {
	if !f.cfg.Watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("file watch unavailable, polling only")
		return nil
	}
	dir := filepath.Dir(f.cfg.Path)
	if err := watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("file watch unavailable, polling only")
		watcher.Close()
		return nil
	}

	out := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != f.cfg.Path {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("file watch error")
			}
		}
	}()
	return out
}

func (f *FileReader) poll(log zerolog.Logger) {
	data, err := os.ReadFile(f.cfg.Path)
	if err != nil {
		metrics.PollErrors.WithLabelValues(f.pipeline.Name()).Inc()
		log.Warn().Err(err).Str("path", f.cfg.Path).Msg("snapshot file unreadable, keeping last document")
		return
	}

	rec, ok := lastCompleteRecord(data)
	if !ok {
		metrics.PollErrors.WithLabelValues(f.pipeline.Name()).Inc()
		log.Warn().Str("path", f.cfg.Path).Msg("no complete record in snapshot file, keeping last document")
		return
	}

	doc := documentFromSnapshot(rec, time.Now().UTC())
	f.pipeline.PublishDocument(doc)
}

// lastCompleteRecord scans a buffer that may hold multiple newline-concatenated
// JSON objects and returns the most recent structurally complete one.
// Unparseable records and incomplete trailing fragments are discarded rather
// than failing the whole read.
func lastCompleteRecord(data []byte) (map[string]any, bool) {
	var last map[string]any
	found := false

	rest := data
	for {
		rest = bytes.TrimLeft(rest, " \t\r\n")
		if len(rest) == 0 {
			break
		}

		dec := json.NewDecoder(bytes.NewReader(rest))
		var rec map[string]any
		if err := dec.Decode(&rec); err == nil {
			last = rec
			found = true
			off := int(dec.InputOffset())
			if off <= 0 || off >= len(rest) {
				break
			}
			rest = rest[off:]
			continue
		}

		// Resync: drop up to the next line boundary and try again.
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		rest = rest[idx+1:]
	}
	return last, found
}

// documentFromSnapshot maps the nested-group snapshot schema to a document:
// health.bpm, tempgun.temp_object, sensors.gyro/accel/distance, weight.value.
// A missing or non-numeric value yields a reading with no value, never zero.
func documentFromSnapshot(rec map[string]any, ts time.Time) models.Document {
	doc := make(models.Document)

	health := groupMap(rec, "health")
	doc[models.KindHeartRate] = readingFrom(models.KindHeartRate, numberIn(health, "bpm"), health, ts)

	tempgun := groupMap(rec, "tempgun")
	temp := numberIn(tempgun, "temp_object")
	tempRaw := tempgun
	sensors := groupMap(rec, "sensors")
	if temp == nil {
		temp = numberIn(sensors, "temp")
		tempRaw = sensors
	}
	doc[models.KindTemperature] = readingFrom(models.KindTemperature, temp, tempRaw, ts)

	doc[models.KindDistance] = readingFrom(models.KindDistance, numberIn(sensors, "distance"), sensors, ts)
	doc[models.KindMotion] = readingFrom(models.KindMotion, motionIn(sensors), sensors, ts)

	weight := groupMap(rec, "weight")
	doc[models.KindWeight] = readingFrom(models.KindWeight, numberIn(weight, "value"), weight, ts)

	if v := numberIn(rec, "alcohol"); v != nil {
		doc[models.KindAlcohol] = models.NewReading(models.KindAlcohol, *v, nil, ts)
	}

	return doc
}

func readingFrom(kind models.SensorKind, v *float64, raw map[string]any, ts time.Time) *models.Reading {
	if v == nil {
		return models.EmptyReading(kind, raw, ts)
	}
	return models.NewReading(kind, *v, raw, ts)
}

func groupMap(rec map[string]any, key string) map[string]any {
	if rec == nil {
		return nil
	}
	m, _ := rec[key].(map[string]any)
	return m
}

// numberIn extracts a numeric value from a decoded JSON group, tolerating
// quoted numbers.
func numberIn(group map[string]any, key string) *float64 {
	if group == nil {
		return nil
	}
	return asNumber(group[key])
}

func asNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// motionIn reduces the gyro and accel groups to the larger vector magnitude.
// Each may be a bare number or an {x, y, z} object.
func motionIn(sensors map[string]any) *float64 {
	var best *float64
	for _, key := range []string{"gyro", "accel"} {
		v, ok := sensors[key]
		if !ok || v == nil {
			continue
		}
		var mag *float64
		switch m := v.(type) {
		case map[string]any:
			var sum float64
			complete := true
			for _, axis := range axisGroupKeys {
				n := asNumber(m[axis])
				if n == nil {
					complete = false
					break
				}
				sum += *n * *n
			}
			if complete {
				root := math.Sqrt(sum)
				mag = &root
			}
		default:
			mag = asNumber(v)
		}
		if mag != nil && (best == nil || *mag > *best) {
			best = mag
		}
	}
	return best
}

var axisGroupKeys = [3]string{"x", "y", "z"}
