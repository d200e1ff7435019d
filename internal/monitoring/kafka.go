package monitoring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// LogEntry is one request as shipped to the log topic.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration"`
	Service    string    `json:"service"`
}

// MessageWriter is the part of *kafka.Writer the request logger uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns an async writer; WriteMessages does not block on
// the brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(_ []kafka.Message, err error) {
			if err != nil {
				log.Errorf("[RequestLogger] failed to write log to Kafka: %v", err)
			}
		},
	}
}

// RequestLogger ships a LogEntry for every request to w.
func RequestLogger(w MessageWriter, service string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		entry := LogEntry{
			Timestamp:  time.Now(),
			IP:         clientIP(c),
			StatusCode: statusOf(c, err),
			RequestID:  c.GetRespHeader(fiber.HeaderXRequestID, c.Get(fiber.HeaderXRequestID)),
			Method:     c.Method(),
			Path:       c.Path(),
			Duration:   time.Since(start).Seconds(),
			Service:    service,
		}

		jsonEntry, mErr := json.Marshal(entry)
		if mErr != nil {
			log.Errorf("[RequestLogger] failed to marshal log entry for request %s", entry.RequestID)
			return err
		}
		if wErr := w.WriteMessages(context.Background(), kafka.Message{Key: []byte(entry.RequestID), Value: jsonEntry}); wErr != nil {
			log.Errorf("[RequestLogger] failed to write log to Kafka: %v", wErr)
			return err
		}
		log.Debugf("[RequestLogger] log entry sent to Kafka request_id:%s", entry.RequestID)
		return err
	}
}

func clientIP(c *fiber.Ctx) string {
	if ip := c.Get(fiber.HeaderXForwardedFor); ip != "" {
		return ip
	}
	return c.IP()
}
