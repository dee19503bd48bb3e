package usagelog

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/pgmq"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// Run starts the usage-log reconciler. It drains the retry queue of audit
// entries whose inline writes failed in the API process and persists them,
// moving entries it cannot persist to the dead-letter queue.
func Run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, client *pgmq.Client, usage repository.UsageRepository) error {
	queue := cfg.UsageLogRetryQueueName
	dlq := cfg.UsageLogDeadLetterQueueName
	logger.Info().Str("queue", queue).Str("dlq", dlq).Msg("Starting usage-log reconciler")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down usage-log reconciler")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, queue, cfg.UsageLogWorkerPollTimeoutSec, cfg.UsageLogWorkerPollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("Shutting down usage-log reconciler")
				return nil
			}
			logger.Error().Err(err).Msg("Error reading usage-log retry queue")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			processMessage(ctx, logger, cfg, client, usage, queue, dlq, msg)
		}
	}
}

func processMessage(ctx context.Context, logger zerolog.Logger, cfg *config.Config, client *pgmq.Client, usage repository.UsageRepository, queue, dlq string, msg *pgmq.Message) {
	var entry model.UsageLogEntry
	if err := json.Unmarshal(msg.Data, &entry); err != nil {
		// A payload that never parses can never succeed; park it in the
		// DLQ raw so nothing is silently lost.
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to unmarshal usage-log payload; moving to DLQ")
		if err := client.Send(ctx, dlq, msg.Data); err != nil {
			logger.Error().Err(err).Str("dlq", dlq).Msg("Failed to send malformed payload to dead-letter queue")
			return
		}
		if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
			logger.Error().Err(err).Msg("Error deleting malformed usage-log message")
		}
		return
	}

	lg := logger.With().Int64("msg_id", msg.ID).Str("user_id", entry.UserID).Str("action", entry.Action).Logger()

	backoff := time.Duration(cfg.UsageLogWorkerBackoffInitialSec) * time.Second
	maxBackoff := time.Duration(cfg.UsageLogWorkerBackoffMaxSec) * time.Second
	var writeErr error
	for attempt := 1; attempt <= cfg.UsageLogWorkerMaxRetries; attempt++ {
		if writeErr = usage.Record(ctx, &entry); writeErr == nil {
			break
		}
		lg.Error().Err(writeErr).Int("attempt", attempt).Msg("Usage-log write failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if writeErr != nil {
		payload, err := entry.MarshalQueuePayload()
		if err != nil {
			lg.Error().Err(err).Msg("Failed to marshal usage-log entry for dead-letter queue")
			return
		}
		if err := client.Send(ctx, dlq, payload); err != nil {
			lg.Error().Err(err).Str("dlq", dlq).Msg("Failed to send usage-log entry to dead-letter queue")
			return
		}
		if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
			lg.Error().Err(err).Msg("Error deleting usage-log message after failure")
		}
		lg.Warn().
			Int("attempts", cfg.UsageLogWorkerMaxRetries).
			Err(writeErr).
			Msg("Exhausted all usage-log retries; moving entry to DLQ")
		return
	}

	if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
		lg.Error().Err(err).Msg("Error deleting usage-log message")
		return
	}
	lg.Info().Msg("Recovered usage-log entry persisted")
}
