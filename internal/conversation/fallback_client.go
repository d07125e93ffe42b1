package conversation

import (
	"context"

	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// FallbackCapability sends a chat turn to the backup provider once when the
// primary provider fails. Rescued turns are reported as OutcomeFallback.
type FallbackCapability struct {
	primary  Capability
	fallback Capability
	observer Observer
	logger   *logging.Logger
}

// NewFallbackCapability creates a fallback-enabled capability. A nil
// fallback means only the primary is used; observer may be nil.
func NewFallbackCapability(primary, fallback Capability, observer Observer, logger *logging.Logger) *FallbackCapability {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackCapability{
		primary:  primary,
		fallback: fallback,
		observer: observer,
		logger:   logger,
	}
}

// Generate calls the primary provider, then the fallback on error.
func (c *FallbackCapability) Generate(ctx context.Context, req DialogueRequest) (DialogueResponse, error) {
	resp, err := c.primary.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary dialogue provider failed",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
		"history_len", len(req.History),
	)

	if c.fallback == nil {
		return DialogueResponse{}, err
	}

	fallbackResp, fallbackErr := c.fallback.Generate(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("both dialogue providers failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return DialogueResponse{}, fallbackErr
	}

	if c.observer != nil {
		c.observer.ObserveDialogue(OutcomeFallback)
	}
	c.logger.Info("chat turn answered by fallback provider", "tool_calls", len(fallbackResp.ToolCalls))
	return fallbackResp, nil
}
