package rag

import (
	"time"

	"github.com/physai/bookrag/pkg/fn"
)

// MaxRetryAttempts caps attempts per external call: one call plus one retry.
const MaxRetryAttempts = 2

// Options configures the answer pipeline. Zero fields are filled from
// DefaultOptions by New; a negative bonus disables corroboration. A nil
// temperature means the default, so an explicit 0 is kept.
type Options struct {
	TopK            int
	ContextLimit    int
	ExcerptMaxChars int
	MaxQueryLength  int

	Threshold          float64
	SecondaryThreshold float64
	CorroborationBonus float64
	MaxBonus           float64

	Temperature         *float64
	FallbackTemperature *float64
	MaxTokens           int

	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration

	Retry fn.RetryOpts
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:                5,
		ContextLimit:        DefaultContextLimit,
		ExcerptMaxChars:     DefaultExcerptMaxChars,
		MaxQueryLength:      2000,
		Threshold:           0.75,
		SecondaryThreshold:  0.6,
		CorroborationBonus:  0.02,
		MaxBonus:            0.06,
		Temperature:         Temp(0.3),
		FallbackTemperature: Temp(0.7),
		MaxTokens:           1024,
		EmbedTimeout:        10 * time.Second,
		SearchTimeout:       5 * time.Second,
		GenerateTimeout:     30 * time.Second,
		Retry:               fn.SingleRetry,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.ContextLimit <= 0 {
		o.ContextLimit = d.ContextLimit
	}
	if o.ExcerptMaxChars <= 0 {
		o.ExcerptMaxChars = d.ExcerptMaxChars
	}
	if o.MaxQueryLength <= 0 {
		o.MaxQueryLength = d.MaxQueryLength
	}
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	if o.SecondaryThreshold <= 0 {
		o.SecondaryThreshold = d.SecondaryThreshold
	}
	switch {
	case o.CorroborationBonus == 0:
		o.CorroborationBonus = d.CorroborationBonus
	case o.CorroborationBonus < 0:
		o.CorroborationBonus = 0
	}
	switch {
	case o.MaxBonus == 0:
		o.MaxBonus = d.MaxBonus
	case o.MaxBonus < 0:
		o.MaxBonus = 0
	}
	if o.Temperature == nil || *o.Temperature < 0 {
		o.Temperature = d.Temperature
	}
	if o.FallbackTemperature == nil || *o.FallbackTemperature < 0 {
		o.FallbackTemperature = d.FallbackTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = d.EmbedTimeout
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = d.SearchTimeout
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = d.GenerateTimeout
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = d.Retry
	}
	if o.Retry.MaxAttempts > MaxRetryAttempts {
		o.Retry.MaxAttempts = MaxRetryAttempts
	}
	return o
}

// Temp returns a pointer to a sampling temperature.
func Temp(v float64) *float64 { return &v }

// Scorer returns the confidence scorer configured by o.
func (o Options) Scorer() Scorer {
	return Scorer{
		Threshold:          o.Threshold,
		SecondaryThreshold: o.SecondaryThreshold,
		CorroborationBonus: o.CorroborationBonus,
		MaxBonus:           o.MaxBonus,
	}
}
