package source

import (
	"testing"
	"time"

	"vigil/internal/models"
)

type connRecorder struct {
	online  int
	offline int
}

func (c *connRecorder) Online()  { c.online++ }
func (c *connRecorder) Offline() { c.offline++ }

func newTestSubscriber(sink AlertSink, conn ConnectivitySink) *Subscriber {
	return NewSubscriber(BusConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "vigil",
		Topics: map[string]models.SensorKind{
			"botibot/temp": models.KindTemperature,
			"botibot/bpm":  models.KindHeartRate,
		},
	}, NewPipeline("bus", sink), conn)
}

func TestHandleMessageMergesPartialUpdate(t *testing.T) {
	sink := &countingSink{}
	s := newTestSubscriber(sink, nil)

	s.handleMessage("botibot/temp", []byte(`{"temp": 37.6}`))
	s.handleMessage("botibot/bpm", []byte(`72`))

	snap := s.Pipeline().Snapshot()
	if len(snap) != 2 {
		t.Fatalf("running document has %d fields, want 2", len(snap))
	}
	if *snap[models.KindTemperature].Value != 37.6 {
		t.Errorf("temperature = %v", *snap[models.KindTemperature].Value)
	}
	if *snap[models.KindHeartRate].Value != 72.0 {
		t.Errorf("heart rate = %v", *snap[models.KindHeartRate].Value)
	}

	// A partial update for one topic must not disturb the other field.
	s.handleMessage("botibot/bpm", []byte(`88`))
	snap = s.Pipeline().Snapshot()
	if *snap[models.KindTemperature].Value != 37.6 {
		t.Error("temperature field disturbed by heart-rate update")
	}
	if *snap[models.KindHeartRate].Value != 88.0 {
		t.Errorf("heart rate = %v, want 88", *snap[models.KindHeartRate].Value)
	}
}

func TestHandleMessageMalformedPayloadSkipped(t *testing.T) {
	sink := &countingSink{}
	s := newTestSubscriber(sink, nil)

	s.handleMessage("botibot/temp", []byte(`{"temp": 37.6}`))
	evaluated := len(sink.readings)

	s.handleMessage("botibot/temp", []byte(`not json`))

	snap := s.Pipeline().Snapshot()
	if *snap[models.KindTemperature].Value != 37.6 {
		t.Error("malformed payload disturbed the running document")
	}
	if len(sink.readings) != evaluated {
		t.Error("malformed payload reached the evaluator")
	}
}

func TestHandleMessageUnmappedTopicIgnored(t *testing.T) {
	sink := &countingSink{}
	s := newTestSubscriber(sink, nil)

	s.handleMessage("botibot/unknown", []byte(`42`))

	if snap := s.Pipeline().Snapshot(); snap != nil {
		t.Errorf("unmapped topic produced a document: %v", snap)
	}
}

func TestHandleMessageUnchangedValueShortCircuits(t *testing.T) {
	sink := &countingSink{}
	s := newTestSubscriber(sink, nil)

	s.handleMessage("botibot/temp", []byte(`{"temp": 37.6}`))
	evaluated := len(sink.readings)

	s.handleMessage("botibot/temp", []byte(`{"temp": 37.6}`))
	if len(sink.readings) != evaluated {
		t.Error("unchanged value re-ran the evaluator")
	}
}

func TestMarkOfflineFiresEveryFailedCycle(t *testing.T) {
	conn := &connRecorder{}
	s := newTestSubscriber(&countingSink{}, conn)

	// A broker that is unreachable from startup notifies on every failed
	// cycle; the cooldown gate downstream decides how often the alert fires.
	s.markOffline()
	s.markOffline()
	s.markOffline()

	if conn.offline != 3 {
		t.Errorf("offline notifications = %d, want 3", conn.offline)
	}
	if s.Connected() {
		t.Error("subscriber should report disconnected")
	}
}

func TestMarkOnlineFiresOnTransitionsOnly(t *testing.T) {
	conn := &connRecorder{}
	s := newTestSubscriber(&countingSink{}, conn)

	s.markOnline()
	s.markOnline()
	s.markOffline()
	s.markOnline()

	if conn.online != 2 {
		t.Errorf("online notifications = %d, want 2 (regains only)", conn.online)
	}
	if !s.Connected() {
		t.Error("subscriber should report connected")
	}
}

func TestSubscriberBackoffDefaults(t *testing.T) {
	s := NewSubscriber(BusConfig{}, NewPipeline("bus", &countingSink{}), nil)

	if s.cfg.MinBackoff != time.Second {
		t.Errorf("min backoff = %v, want 1s", s.cfg.MinBackoff)
	}
	if s.cfg.MaxBackoff != time.Minute {
		t.Errorf("max backoff = %v, want 1m", s.cfg.MaxBackoff)
	}
}
