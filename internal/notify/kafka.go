package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Envelope is the record written to the order event stream.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	SaleID       int64           `json:"sale_id"`
	Action       string          `json:"action"`
	Payload      json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaStream publishes every change keyed by sale id, so one sale's
// events land on one partition in order.
type KafkaStream struct {
	w       messageWriter
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewKafkaStream(brokers []string, topic string, buf int) *KafkaStream {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(messages)).Msg("kafka: write order events")
			}
		},
	}
	return newKafkaStream(w, buf)
}

func newKafkaStream(w messageWriter, buf int) *KafkaStream {
	return &KafkaStream{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until ctx is done, then flushes what is queued.
func (k *KafkaStream) Start(ctx context.Context) {
	go func() {
		defer close(k.closeCh)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m := <-k.inbox:
						k.write(m)
					default:
						if err := k.w.Close(); err != nil {
							log.Error().Err(err).Msg("kafka: close writer")
						}
						return
					}
				}
			case m := <-k.inbox:
				k.write(m)
			}
		}
	}()
}

func (k *KafkaStream) write(m kafka.Message) {
	if err := k.w.WriteMessages(context.Background(), m); err != nil {
		log.Error().Err(err).Str("key", string(m.Key)).Msg("kafka: write order event")
	}
}

// Publish queues the event without blocking; a full queue drops it.
func (k *KafkaStream) Publish(ev Event) bool {
	value, err := json.Marshal(Envelope{
		EventID:      ev.ID,
		EventType:    ev.Type,
		EventVersion: 1,
		OccurredAt:   ev.At,
		Producer:     "comanda-api",
		SaleID:       ev.SaleID,
		Action:       ev.Action,
		Payload:      ev.Payload,
	})
	if err != nil {
		log.Error().Err(err).Int64("sale_id", ev.SaleID).Msg("kafka: encode order event")
		return false
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.SaleID, 10)),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	select {
	case k.inbox <- msg:
		return true
	default:
		log.Warn().Int64("sale_id", ev.SaleID).Msg("kafka: queue full, order event dropped")
		return false
	}
}

// WaitClosed blocks until the writer loop has flushed and exited.
func (k *KafkaStream) WaitClosed() { <-k.closeCh }
