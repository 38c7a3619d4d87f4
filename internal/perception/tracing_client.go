package perception

import (
	"context"
	"time"

	"voxsh/internal/logging"
)

// slowOracleCall is the latency above which a call is logged as a warning.
const slowOracleCall = 10 * time.Second

// CallRecorder receives one observation per oracle call.
type CallRecorder interface {
	ObserveOracleCall(op string, duration time.Duration, err error)
}

// TracingOracle wraps any Oracle and logs every interaction. All oracle
// calls in a session flow through this wrapper.
type TracingOracle struct {
	underlying Oracle
	recorder   CallRecorder
	now        func() time.Time
}

// NewTracingOracle creates a tracing wrapper. recorder may be nil.
func NewTracingOracle(underlying Oracle, recorder CallRecorder) *TracingOracle {
	return &TracingOracle{
		underlying: underlying,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Complete implements Oracle with tracing.
func (t *TracingOracle) Complete(ctx context.Context, prompt string) (Completion, error) {
	op := OperationFrom(ctx)
	start := t.now()
	timer := logging.StartTimer(logging.CategoryAPI, "oracle "+op)
	logging.API("Oracle call started: op=%s prompt_len=%d", op, len(prompt))
	logging.APIDebug("Oracle prompt [%s]: %s", op, prompt)

	completion, err := t.underlying.Complete(ctx, prompt)
	timer.StopWithThreshold(slowOracleCall)

	duration := t.now().Sub(start)
	if err != nil {
		logging.APIError("Oracle call failed: op=%s duration=%v error=%v", op, duration, err)
	} else {
		logging.API("Oracle call completed: op=%s duration=%v response_len=%d", op, duration, len(completion.Raw))
		logging.APIDebug("Oracle reply [%s]: %s", op, completion.Raw)
	}

	if logging.IsJSONFormat() {
		fields := map[string]interface{}{
			"op":          op,
			"duration_ms": duration.Milliseconds(),
			"prompt_len":  len(prompt),
			"success":     err == nil,
		}
		logging.Get(logging.CategoryAPI).StructuredLog("info", "oracle_call", fields)
	}

	if t.recorder != nil {
		t.recorder.ObserveOracleCall(op, duration, err)
	}
	return completion, err
}
