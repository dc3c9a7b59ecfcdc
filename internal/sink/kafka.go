package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes each entry as a JSON message keyed by transaction hash.
type KafkaSender struct {
	writer messageWriter
	topic  string
	tracer trace.Tracer
}

// NewKafkaSender builds a producer for topic on brokers.
func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaSender(writer, topic), nil
}

func newKafkaSender(w messageWriter, topic string) *KafkaSender {
	return &KafkaSender{writer: w, topic: topic, tracer: otel.Tracer("tx-ledger/kafka")}
}

func (k *KafkaSender) Send(ctx context.Context, entry ledger.Entry) error {
	ctx, span := k.tracer.Start(ctx, "ledger.publish_entry", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("tx.hash", entry.Hash),
		attribute.String("asset", entry.AssetSymbol),
		attribute.Int64("block.number", int64(entry.BlockNumber)),
	)

	msg, err := buildMessage(ctx, k.topic, entry)
	if err == nil {
		err = k.writer.WriteMessages(ctx, msg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (k *KafkaSender) Close() error {
	return k.writer.Close()
}

func buildMessage(ctx context.Context, topic string, entry ledger.Entry) (kafka.Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal entry: %w", err)
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(entry.Hash),
		Value:   payload,
		Headers: make([]kafka.Header, 0, 2),
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})
	return msg, nil
}

// headerCarrier exposes a message's headers to the otel propagator.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i := range c.msg.Headers {
		if strings.EqualFold(c.msg.Headers[i].Key, key) {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
