package infra

import (
	"context"
	"errors"
	"time"

	"chatassistant/cmd/conversation-service/internal/biz"
	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sony/gobreaker"
)

// ServiceUnavailable 熔断打开时返回的错误文本
const ServiceUnavailable = "AI service temporarily unavailable"

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Name             string        // 熔断器名称
	MaxRequests      uint32        // 半开状态允许的最大请求数
	Interval         time.Duration // 统计窗口
	Timeout          time.Duration // 熔断后恢复时间
	FailureThreshold float64       // 失败率阈值（0.0-1.0）
	MinRequests      uint32        // 最小请求数（达到后才计算失败率）
}

// ResilientGateway 带熔断的模型网关
//
// 只熔断不重试：失败结果计入熔断统计后原样返回。
type ResilientGateway struct {
	next    biz.ChatCompleter
	breaker *gobreaker.CircuitBreaker
	log     *log.Helper
}

// completionFailure 让失败结果计入熔断统计
type completionFailure struct {
	result *domain.CompletionResult
}

func (e *completionFailure) Error() string {
	return e.result.Error
}

// NewResilientGateway 创建带熔断的模型网关
func NewResilientGateway(gateway *LLMGateway, config *CircuitBreakerConfig, logger log.Logger) *ResilientGateway {
	return newResilientGateway(gateway, config, logger)
}

func newResilientGateway(next biz.ChatCompleter, config *CircuitBreakerConfig, logger log.Logger) *ResilientGateway {
	if config == nil {
		config = &CircuitBreakerConfig{}
	}
	name := config.Name
	if name == "" {
		name = "llm-gateway"
	}
	maxRequests := config.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	interval := config.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	threshold := config.FailureThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	minRequests := config.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}

	logHelper := log.NewHelper(log.With(logger, "module", "infra/resilient_gateway"))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= threshold
			if shouldTrip {
				logHelper.Warnf("circuit breaker tripping: requests=%d, failures=%d, ratio=%.2f",
					counts.Requests, counts.TotalFailures, failureRatio)
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logHelper.Infof("circuit breaker %s state change: %s -> %s", name, from, to)
			circuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	circuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	return &ResilientGateway{
		next:    next,
		breaker: breaker,
		log:     logHelper,
	}
}

// Complete 通过熔断器执行补全
func (g *ResilientGateway) Complete(ctx context.Context, entries []domain.ChatEntry, tools []domain.ToolDefinition) *domain.CompletionResult {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		result := g.next.Complete(ctx, entries, tools)
		if result == nil {
			result = domain.ErrorResult("No response from AI API")
		}
		if result.Failed() {
			return nil, &completionFailure{result: result}
		}
		return result, nil
	})

	if err == nil {
		return out.(*domain.CompletionResult)
	}

	var failure *completionFailure
	if errors.As(err, &failure) {
		return failure.result
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.log.WithContext(ctx).Warnf("circuit breaker rejected %s request: %v", domain.OperationFromContext(ctx), err)
		return domain.ErrorResult(ServiceUnavailable)
	}

	return domain.ErrorResult(err.Error())
}

// State 当前熔断状态
func (g *ResilientGateway) State() gobreaker.State {
	return g.breaker.State()
}
