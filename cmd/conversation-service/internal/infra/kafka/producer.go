package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"chatassistant/cmd/conversation-service/internal/biz"
	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/IBM/sarama"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 事件类型
const (
	EventMessageCreated         = "message.created"
	EventConversationSummarized = "conversation.summarized"
	EventConversationDeleted    = "conversation.deleted"

	defaultTopic = "conversation-events"
)

// ProducerConfig 生产者配置，Brokers 为空时不发布事件
type ProducerConfig struct {
	Brokers     []string
	Topic       string
	Compression string // none, gzip, snappy, lz4, zstd
	MaxRetries  int
	Timeout     time.Duration
}

// ConversationEvent 对话领域事件
type ConversationEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	ConversationID int64     `json:"conversation_id"`
	UserID         string    `json:"user_id,omitempty"`
	MessageID      int64     `json:"message_id,omitempty"`
	MessageType    string    `json:"message_type,omitempty"`
	ContentLength  int       `json:"content_length,omitempty"`
	LastMessageID  int64     `json:"last_message_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventProducer Kafka 事件生产者
type EventProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *log.Helper
}

// NewEventPublisher 按配置创建事件发布器，未配置 broker 时返回空实现
func NewEventPublisher(config *ProducerConfig, logger log.Logger) (biz.EventPublisher, func(), error) {
	if config == nil || len(config.Brokers) == 0 {
		log.NewHelper(logger).Info("kafka brokers not configured, domain events disabled")
		return NopPublisher{}, func() {}, nil
	}

	producer, err := NewEventProducer(config, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := producer.Close(); err != nil {
			producer.log.Errorf("failed to close kafka producer: %v", err)
		}
	}
	return producer, cleanup, nil
}

// NewEventProducer 创建事件生产者
func NewEventProducer(config *ProducerConfig, logger log.Logger) (*EventProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	if config.MaxRetries > 0 {
		saramaConfig.Producer.Retry.Max = config.MaxRetries
	}
	if config.Timeout > 0 {
		saramaConfig.Producer.Timeout = config.Timeout
	}
	saramaConfig.Producer.Compression = compressionCodec(config.Compression)

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}

	return NewEventProducerWithClient(producer, config.Topic, logger), nil
}

// NewEventProducerWithClient 使用已有的 SyncProducer 创建事件生产者
func NewEventProducerWithClient(producer sarama.SyncProducer, topic string, logger log.Logger) *EventProducer {
	if topic == "" {
		topic = defaultTopic
	}
	return &EventProducer{
		producer: producer,
		topic:    topic,
		log:      log.NewHelper(log.With(logger, "module", "infra/kafka")),
	}
}

// PublishMessageCreated 消息创建事件
func (p *EventProducer) PublishMessageCreated(ctx context.Context, msg *domain.Message) {
	p.publish(ctx, &ConversationEvent{
		EventType:      EventMessageCreated,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		MessageType:    msg.Type.String(),
		ContentLength:  len(msg.Content),
	})
}

// PublishConversationSummarized 摘要生成事件
func (p *EventProducer) PublishConversationSummarized(ctx context.Context, summary *domain.ConversationSummary) {
	p.publish(ctx, &ConversationEvent{
		EventType:      EventConversationSummarized,
		ConversationID: summary.ConversationID,
		LastMessageID:  summary.LastMessageID,
		ContentLength:  len(summary.Summary),
	})
}

// PublishConversationDeleted 对话删除事件
func (p *EventProducer) PublishConversationDeleted(ctx context.Context, conversationID int64, userID string) {
	p.publish(ctx, &ConversationEvent{
		EventType:      EventConversationDeleted,
		ConversationID: conversationID,
		UserID:         userID,
	})
}

// publish 失败只记录日志
func (p *EventProducer) publish(ctx context.Context, event *ConversationEvent) {
	event.EventID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.WithContext(ctx).Errorf("marshal %s event: %v", event.EventType, err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(strconv.FormatInt(event.ConversationID, 10)),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: event.OccurredAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
		},
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.log.WithContext(ctx).Warnf("publish %s event for conversation %d: %v", event.EventType, event.ConversationID, err)
	}
}

// Close 关闭生产者
func (p *EventProducer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func compressionCodec(name string) sarama.CompressionCodec {
	switch name {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}

// NopPublisher 不发布任何事件
type NopPublisher struct{}

func (NopPublisher) PublishMessageCreated(context.Context, *domain.Message) {}

func (NopPublisher) PublishConversationSummarized(context.Context, *domain.ConversationSummary) {}

func (NopPublisher) PublishConversationDeleted(context.Context, int64, string) {}
