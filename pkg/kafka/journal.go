// Package kafka publishes document action events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"agri-search-go/internal/config"
	"agri-search-go/internal/model"
	"agri-search-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// Journal records completed document actions.
type Journal interface {
	Publish(ctx context.Context, event model.ActionEvent) error
	Close() error
}

// NewJournal returns a Kafka-backed journal, or a no-op one when no brokers
// are configured.
func NewJournal(cfg config.KafkaConfig) Journal {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		log.Info("Kafka brokers not configured, action journal disabled")
		return nopJournal{}
	}
	// Async keeps Publish off the action path; delivery errors are logged.
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warnf("Failed to deliver %d action events: %v", len(msgs), err)
			}
		},
	}
	log.Infof("Kafka action journal writing to topic '%s'", cfg.Topic)
	return &kafkaJournal{writer: w}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaJournal struct {
	writer messageWriter
}

func (j *kafkaJournal) Publish(ctx context.Context, event model.ActionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return j.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ID),
		Value: value,
	})
}

func (j *kafkaJournal) Close() error {
	return j.writer.Close()
}

type nopJournal struct{}

func (nopJournal) Publish(context.Context, model.ActionEvent) error { return nil }
func (nopJournal) Close() error                                     { return nil }

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
