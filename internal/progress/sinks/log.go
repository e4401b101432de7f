package sinks

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/batchlog/internal/progress"
)

// LogSink emits structured logs for progress streams. It is useful during
// development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. Batch completions log at debug, failed
// runs at warn, and run boundaries at info.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", uuid.UUID(evt.RunID).String()),
			zap.String("stage", string(evt.Stage)),
			zap.Int64("items", evt.Items),
			zap.Int64("batches", evt.Batches),
		}
		if evt.Name != "" {
			fields = append(fields, zap.String("name", evt.Name))
		}
		if evt.Total > 0 {
			fields = append(fields, zap.Int64("total", evt.Total))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Log(levelFor(evt.Stage), "progress event", fields...)
	}
	return nil
}

func levelFor(stage progress.Stage) zapcore.Level {
	switch stage {
	case progress.StageBatchDone:
		return zapcore.DebugLevel
	case progress.StageRunError:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Close flushes the logger.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}
