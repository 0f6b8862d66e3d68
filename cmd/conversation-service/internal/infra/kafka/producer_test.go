package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockProducer(t *testing.T) *mocks.SyncProducer {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, config)
}

func TestEventProducer_PublishMessageCreated(t *testing.T) {
	mock := newMockProducer(t)
	var got ConversationEvent
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &got)
	})

	producer := NewEventProducerWithClient(mock, "", log.DefaultLogger)
	producer.PublishMessageCreated(context.Background(), &domain.Message{
		ID:             11,
		ConversationID: 3,
		Type:           domain.MessageTypeAI,
		Content:        "hello",
	})
	require.NoError(t, producer.Close())

	assert.Equal(t, EventMessageCreated, got.EventType)
	assert.Equal(t, int64(3), got.ConversationID)
	assert.Equal(t, int64(11), got.MessageID)
	assert.Equal(t, "ai", got.MessageType)
	assert.Equal(t, 5, got.ContentLength)
	assert.NotEmpty(t, got.EventID)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestEventProducer_PublishSummarized(t *testing.T) {
	mock := newMockProducer(t)
	var got ConversationEvent
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &got)
	})

	producer := NewEventProducerWithClient(mock, "events", log.DefaultLogger)
	producer.PublishConversationSummarized(context.Background(), &domain.ConversationSummary{
		ConversationID: 9,
		Summary:        "short",
		LastMessageID:  120,
	})
	require.NoError(t, producer.Close())

	assert.Equal(t, EventConversationSummarized, got.EventType)
	assert.Equal(t, int64(120), got.LastMessageID)
}

func TestEventProducer_SendFailureIsSwallowed(t *testing.T) {
	mock := newMockProducer(t)
	mock.ExpectSendMessageAndFail(errors.New("broker down"))

	producer := NewEventProducerWithClient(mock, "events", log.DefaultLogger)
	assert.NotPanics(t, func() {
		producer.PublishConversationDeleted(context.Background(), 1, "alice")
	})
	require.NoError(t, producer.Close())
}

func TestNewEventPublisher_DisabledWithoutBrokers(t *testing.T) {
	publisher, cleanup, err := NewEventPublisher(&ProducerConfig{}, log.DefaultLogger)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, NopPublisher{}, publisher)
}

func TestCompressionCodec(t *testing.T) {
	assert.Equal(t, sarama.CompressionZSTD, compressionCodec("zstd"))
	assert.Equal(t, sarama.CompressionNone, compressionCodec("unknown"))
}
