package journal

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/ledger"
)

// Journal appends settled trades to a kafka topic, best-effort. Failures are
// logged and never surfaced to the settlement path.
type Journal struct {
	writer KafkaWriter
	logger *zap.Logger
}

func NewJournal(writer KafkaWriter, logger *zap.Logger) *Journal {
	return &Journal{writer: writer, logger: logger}
}

// NewWriter builds the production kafka writer for the journal topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		// Optimization: Send batches to reduce network IO
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
}

func (j *Journal) Record(ctx context.Context, username string, side ledger.Side, quantity int64, price float64) {
	record := TradeRecord{
		Username:  username,
		Side:      string(side),
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.Now().UnixMicro(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		j.logger.Error("JSON Marshal Error", zap.Error(err))
		return
	}

	// Key ensures partition ordering per user
	err = j.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(username),
		Value: payload,
	})
	if err != nil {
		j.logger.Error("Kafka Write Error", zap.Error(err))
	}
}

func (j *Journal) Close() error {
	return j.writer.Close()
}

// Nop is the journal used when kafka is disabled.
type Nop struct{}

func (Nop) Record(context.Context, string, ledger.Side, int64, float64) {}

// EnsureTopic creates the journal topic if it does not exist yet.
func EnsureTopic(logger *zap.Logger, brokerAddress, topicName string) {
	conn, err := kafka.Dial("tcp", brokerAddress)
	if err != nil {
		logger.Warn("Failed to dial leader for topic creation", zap.Error(err))
		return
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		logger.Warn("Failed to connect to controller", zap.Error(err))
		return
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		logger.Warn("Failed to dial controller", zap.Error(err))
		return
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     4,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug("Topic creation info", zap.Error(err))
	}
}
