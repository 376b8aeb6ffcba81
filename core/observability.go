package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Observe records one logical operation: a counter, a latency histogram,
// and a structured log line. Safe with a nil logger or recorder.
func Observe(
	ctx context.Context,
	logger Logger,
	metrics MetricsRecorder,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	if metrics != nil {
		tags := map[string]string{
			"operation": operation,
			"status":    status,
		}
		for _, key := range []string{"environment", "endpoint", "stage"} {
			if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
				tags[key] = value
			}
		}
		metrics.IncCounter(ctx, "brokerage."+operation+".total", 1, tags)
		metrics.ObserveHistogram(ctx, "brokerage."+operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)
	}

	if logger == nil {
		return
	}
	log := logger
	if ctx != nil {
		log = log.WithContext(ctx)
	}
	if fieldsLogger, ok := log.(FieldsLogger); ok {
		log = fieldsLogger.WithFields(cloneFields(contextFields))
	}
	args := flattenFields(contextFields)
	if err != nil {
		log.Error(operation+" failed", args...)
		return
	}
	log.Info(operation+" succeeded", args...)
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
