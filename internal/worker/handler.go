package worker

import (
	"context"
	"log"
	"time"

	"mobilepush/internal/model"
)

// EventProcessor handles one missed-message event to completion.
// This abstracts the push service so workers don't depend on it directly.
type EventProcessor interface {
	HandleMissedMessage(ctx context.Context, event model.MissedMessageEvent) error
}

// Handler processes missed-message events from the queue.
type Handler struct {
	processor EventProcessor
}

// NewHandler creates a new event handler.
func NewHandler(processor EventProcessor) *Handler {
	return &Handler{processor: processor}
}

// HandleEvent runs the event through the processor and logs the outcome.
func (h *Handler) HandleEvent(ctx context.Context, event model.MissedMessageEvent) error {
	startTime := time.Now()
	log.Printf("[Worker] MissedMessage: user=%d message=%d trigger=%s",
		event.UserProfileID, event.MessageID, event.Trigger)

	if err := h.processor.HandleMissedMessage(ctx, event); err != nil {
		log.Printf("[Worker] HandleEvent FAILED: user=%d message=%d duration=%v err=%v",
			event.UserProfileID, event.MessageID, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: user=%d message=%d duration=%v",
		event.UserProfileID, event.MessageID, time.Since(startTime))
	return nil
}
