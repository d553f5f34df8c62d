package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	cfg "github.com/adshield/fraud-service/internal/config"
	"github.com/adshield/fraud-service/internal/models"
	"github.com/segmentio/kafka-go"
)

// KafkaAlertShipper buffers fraud alerts and ships them to Kafka
// asynchronously. The click hot path only ever pays for a channel send, and
// alerts are dropped rather than backing up into it.
type KafkaAlertShipper struct {
	cfg  cfg.AlertKafkaConfig
	w    *kafka.Writer
	ch   chan FraudAlertEvent
	stop chan struct{}
}

func NewKafkaAlertShipper(cfgIn cfg.AlertKafkaConfig) (*KafkaAlertShipper, error) {
	cfg := cfgIn
	if !cfg.Enabled {
		return &KafkaAlertShipper{cfg: cfg, ch: make(chan FraudAlertEvent), stop: make(chan struct{})}, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no alert topic configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = cfg.BatchSize * 4
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	tr := &kafka.Transport{
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.TLS {
		tr.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Transport:              tr,
		AllowAutoTopicCreation: false,
		Async:                  true,
		BatchTimeout:           cfg.FlushEvery,
		BatchSize:              cfg.BatchSize,
		WriteTimeout:           cfg.WriteTimeout,
	}

	return &KafkaAlertShipper{
		cfg:  cfg,
		w:    w,
		ch:   make(chan FraudAlertEvent, cfg.QueueCapacity),
		stop: make(chan struct{}),
	}, nil
}

func (s *KafkaAlertShipper) Start() {
	if !s.cfg.Enabled {
		return
	}
	go s.loop()
}

func (s *KafkaAlertShipper) Stop(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	close(s.stop)
	// drain briefly
	drain := time.After(500 * time.Millisecond)
	for {
		select {
		case ev := <-s.ch:
			_ = s.dispatch(ev)
		case <-drain:
			if s.w != nil {
				_ = s.w.Close()
			}
			return
		}
	}
}

// PublishAlert implements service.AlertPublisher.
func (s *KafkaAlertShipper) PublishAlert(rec models.SuspiciousActivityRecord) {
	if !s.cfg.Enabled {
		return
	}
	ev := FraudAlertEvent{
		Timestamp:    time.UnixMilli(rec.TimestampMillis).UTC(),
		ActivityType: string(rec.ActivityType),
		Severity:     string(rec.Severity),
		UserID:       rec.UserID,
		DeviceID:     rec.DeviceID,
		IP:           rec.IP,
		AdID:         rec.AdID,
		Score:        rec.Score,
		Reasons:      rec.Reasons,
	}
	select {
	case s.ch <- ev:
	default:
		// drop on backpressure
	}
}

func (s *KafkaAlertShipper) loop() {
	for {
		select {
		case ev := <-s.ch:
			_ = s.dispatch(ev)
		case <-s.stop:
			// drain remaining quickly
			for {
				select {
				case ev := <-s.ch:
					_ = s.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *KafkaAlertShipper) dispatch(ev FraudAlertEvent) error {
	if s.w == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, _ := json.Marshal(ev)

	var key []byte
	if ev.UserID != "" {
		key = []byte(ev.UserID)
	}
	return s.w.WriteMessages(context.Background(), kafka.Message{
		Key:   key,
		Value: payload,
		Time:  ev.Timestamp,
	})
}
