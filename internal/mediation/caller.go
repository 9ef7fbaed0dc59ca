package mediation

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eldersfive/mediator/internal/llm"
	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/pkg/logger"
	"github.com/eldersfive/mediator/pkg/metrics"
)

// DefaultTimeout bounds the model call and its retry.
const DefaultTimeout = 35 * time.Second

// Outcome is how a model call ended.
type Outcome int

const (
	// OutcomeParsed means a model reply parsed, on the first or second attempt.
	OutcomeParsed Outcome = iota + 1
	// OutcomeFallback means both replies were unusable and FallbackResponse was used.
	OutcomeFallback
	// OutcomeFailed means the provider call itself failed. Result.Err is set.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeFallback:
		return "fallback"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result of Caller.Run. Response is set unless Outcome is OutcomeFailed.
type Result struct {
	Outcome  Outcome
	Response *model.MediatorResponse
	Err      error
	Attempts int
}

// Caller runs the model with one strict retry and a fallback.
type Caller struct {
	client  llm.Client
	timeout time.Duration
	log     *logger.Logger
}

// NewCaller creates a Caller. A non-positive timeout uses DefaultTimeout.
func NewCaller(client llm.Client, timeout time.Duration, log *logger.Logger) *Caller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Caller{client: client, timeout: timeout, log: log}
}

type callState int

const (
	stateAttempt callState = iota
	stateStrictRetry
	stateFallback
	stateDone
)

// Run executes attempt -> strict retry -> fallback. Only parse failures
// advance the machine; a provider error ends it with OutcomeFailed.
func (c *Caller) Run(ctx context.Context, req *llm.CompletionRequest, left, right string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var res Result
	for state := stateAttempt; state != stateDone; {
		switch state {
		case stateAttempt, stateStrictRetry:
			attemptReq := req
			if state == stateStrictRetry {
				attemptReq = StrictRetry(req)
			}
			res.Attempts++

			raw, err := c.complete(ctx, attemptReq)
			if err != nil {
				c.log.Error("model call failed", zap.Int("attempt", res.Attempts), zap.Error(err))
				return Result{Outcome: OutcomeFailed, Err: err, Attempts: res.Attempts}
			}

			resp, err := ParseResponse(raw, left, right)
			if err == nil {
				res.Outcome, res.Response = OutcomeParsed, resp
				state = stateDone
				continue
			}

			metrics.ModelParseFailures.WithLabelValues(strconv.Itoa(res.Attempts)).Inc()
			if state == stateAttempt {
				c.log.Warn("model reply did not parse, retrying with strict instruction", zap.Error(err))
				state = stateStrictRetry
			} else {
				c.log.Error("model reply did not parse after retry, using fallback", zap.Error(err))
				state = stateFallback
			}

		case stateFallback:
			res.Outcome, res.Response = OutcomeFallback, FallbackResponse(left, right)
			state = stateDone
		}
	}
	return res
}

func (c *Caller) complete(ctx context.Context, req *llm.CompletionRequest) (string, error) {
	start := time.Now()
	resp, err := c.client.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		perr := llm.Classify(c.client.Name(), 0, err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			perr = &llm.ProviderError{Kind: llm.Timeout, Provider: c.client.Name(), Err: err}
		}
		metrics.RecordLLMCall(c.client.Name(), req.Model, string(perr.Kind), elapsed, 0, 0)
		return "", perr
	}

	metrics.RecordLLMCall(c.client.Name(), resp.Model, "ok", elapsed, resp.TokensIn, resp.TokensOut)
	return resp.Content, nil
}
