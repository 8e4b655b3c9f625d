// Package trigger implements the shared invocation gate for all digest jobs.
//
// An invocation is either a scheduler event carrying the scheduler source
// tag, or an HTTP-style envelope whose POST body repeats the same tag.
// Anything else is rejected before the job runs. Failures escaping a job
// are caught here and mapped to a server-error response.
package trigger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/metrics"
)

// ScheduledSource is the source tag carried by scheduler invocations.
const ScheduledSource = "aws.events"

// Event is the inbound invocation payload.
type Event struct {
	Source          string          `json:"source,omitempty"`
	RequestContext  *RequestContext `json:"requestContext,omitempty"`
	Body            string          `json:"body,omitempty"`
	IsBase64Encoded bool            `json:"isBase64Encoded,omitempty"`
}

// RequestContext marks an HTTP-shaped invocation.
type RequestContext struct {
	HTTP HTTPContext `json:"http"`
}

// HTTPContext carries the HTTP method of the invocation.
type HTTPContext struct {
	Method string `json:"method"`
}

// IsHTTP reports whether the event came through an HTTP-style envelope.
func (e Event) IsHTTP() bool {
	return e.RequestContext != nil
}

// Response is the invocation outcome. Body and Headers are only set for
// HTTP-shaped invocations; scheduler callers get a bare status code.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

// Handle gates one invocation of the named job. When the event is
// recognized as a trigger, run is executed exactly once; panics and
// returned errors are caught here and reported as a 500.
func Handle(ctx context.Context, event Event, jobName string, run func(context.Context) error, logger *zap.Logger) Response {
	start := time.Now()
	resp := handle(ctx, event, jobName, run, logger)
	metrics.ObserveJobRun(jobName, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
	return resp
}

func handle(ctx context.Context, event Event, jobName string, run func(context.Context) error, logger *zap.Logger) Response {
	triggered := false

	switch {
	case event.Source == ScheduledSource:
		triggered = true
		logger.Info("Invocation source: scheduler", zap.String("job", jobName))
	case event.IsHTTP() && event.RequestContext.HTTP.Method == http.MethodPost:
		logger.Info("Invocation source: HTTP POST", zap.String("job", jobName))
		triggered = bodyCarriesTrigger(event, logger)
		if !triggered {
			return jsonResponse(http.StatusBadRequest, "Invalid request: Expected 'source: aws.events' in POST body")
		}
	default:
		logger.Warn("Invocation source not recognized; no action taken", zap.String("job", jobName))
		if event.IsHTTP() {
			return jsonResponse(http.StatusBadRequest, "Invalid request: Expected 'source: aws.events' in POST body")
		}
		return Response{StatusCode: http.StatusBadRequest}
	}

	if err := runGuarded(ctx, run); err != nil {
		logger.Error("Job execution failed",
			zap.String("job", jobName),
			zap.Error(err),
		)
		if event.IsHTTP() {
			return jsonResponse(http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
		}
		return Response{StatusCode: http.StatusInternalServerError}
	}

	logger.Info("Job finished", zap.String("job", jobName))
	if event.IsHTTP() {
		return jsonResponse(http.StatusOK, fmt.Sprintf("%s triggered successfully", jobName))
	}
	return Response{StatusCode: http.StatusOK}
}

// bodyCarriesTrigger decodes the HTTP body (base64 if flagged) and looks
// for the scheduler source tag inside it.
func bodyCarriesTrigger(event Event, logger *zap.Logger) bool {
	bodyStr := event.Body
	if bodyStr == "" {
		bodyStr = "{}"
	}
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(bodyStr)
		if err != nil {
			logger.Warn("Failed to decode base64 body", zap.Error(err))
			bodyStr = "{}"
		} else {
			bodyStr = string(decoded)
		}
	}

	var body struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(bodyStr), &body); err != nil {
		logger.Warn("Failed to decode JSON body", zap.Error(err))
		return false
	}
	if body.Source != ScheduledSource {
		logger.Warn("Request body did not carry the scheduler source tag",
			zap.String("source", body.Source),
		)
		return false
	}
	return true
}

// runGuarded executes run, converting a panic into an error.
func runGuarded(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return run(ctx)
}

func jsonResponse(status int, message string) Response {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		body = []byte(`{"message": "internal error"}`)
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
