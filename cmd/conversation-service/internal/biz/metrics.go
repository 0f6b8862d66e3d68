package biz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	summarizationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_summarizations_total",
			Help: "Total number of context summarizations",
		},
		[]string{"result"},
	)

	toolRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_tool_rounds_total",
			Help: "Total number of tool call follow-up rounds",
		},
		[]string{"result"},
	)

	titleGenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_title_generations_total",
			Help: "Total number of conversation title generations",
		},
		[]string{"source"},
	)
)
