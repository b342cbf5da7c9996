package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/seawatts/grid-sub000/logging"
	"github.com/seawatts/grid-sub000/logging/lifecycle"
)

// Measurement names.
const (
	MeasurementWaveStart = "wave_start"
	MeasurementWaveEnd   = "wave_end"
	MeasurementGameOver  = "game_over"
)

const writeTimeout = 5 * time.Second

// Config selects the InfluxDB target.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Run tags every point so several runs can share a bucket.
	Run string
}

// PointWriter is the part of the blocking write API the sink uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*influxdb2_write.Point) error
}

// Sink turns wave lifecycle events into InfluxDB points. It is a
// logging.Sink, so the router delivers events on its own goroutine.
type Sink struct {
	client influxdb2.Client
	writer PointWriter
	run    string
}

// NewSink connects to InfluxDB and verifies the server answers.
func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, influxdb2.DefaultOptions().SetHTTPRequestTimeout(5))
	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server not ready")
		}
		return nil, fmt.Errorf("influxdb %s unreachable: %w", cfg.URL, err)
	}
	var writer influxdb2_api.WriteAPIBlocking = client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
	return &Sink{client: client, writer: writer, run: cfg.Run}, nil
}

// NewSinkWithWriter wraps an existing writer.
func NewSinkWithWriter(writer PointWriter, run string) *Sink {
	return &Sink{writer: writer, run: run}
}

func (s *Sink) Write(event logging.Event) error {
	point := s.point(event)
	if point == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.writer.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write %s: %w", event.Type, err)
	}
	return nil
}

func (s *Sink) point(event logging.Event) *influxdb2_write.Point {
	at := event.Time
	if at.IsZero() {
		at = time.Now()
	}
	tags := map[string]string{"run": s.run}
	switch payload := event.Payload.(type) {
	case lifecycle.WaveStartedPayload:
		return influxdb2.NewPoint(MeasurementWaveStart, tags, map[string]interface{}{
			"wave":       payload.Wave,
			"enemies":    payload.Enemies,
			"bosses":     payload.Bosses,
			"paths":      payload.Paths,
			"difficulty": payload.Difficulty,
			"tick":       int64(event.Tick),
		}, at)
	case lifecycle.WaveCompletedPayload:
		return influxdb2.NewPoint(MeasurementWaveEnd, tags, map[string]interface{}{
			"wave":  payload.Wave,
			"money": payload.Money,
			"lives": payload.Lives,
			"score": payload.Score,
			"kills": payload.Kills,
			"tick":  int64(event.Tick),
		}, at)
	case lifecycle.GameOverPayload:
		tags["status"] = payload.Status
		return influxdb2.NewPoint(MeasurementGameOver, tags, map[string]interface{}{
			"wave":  payload.Wave,
			"score": payload.Score,
			"tick":  int64(event.Tick),
		}, at)
	}
	return nil
}

func (s *Sink) Close(context.Context) error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
