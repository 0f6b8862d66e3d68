package infra

import (
	"chatassistant/cmd/conversation-service/internal/infra/kafka"

	"github.com/google/wire"
	"go.opentelemetry.io/otel"
)

// ProviderSet 基础设施层提供者集合
var ProviderSet = wire.NewSet(
	NewLLMGateway,
	NewResilientGateway,
	kafka.NewEventPublisher,
)

var tracer = otel.Tracer("conversation-service/infra")
