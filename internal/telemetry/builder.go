package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/tidwall/gjson"

	"sonde/internal/core"
	"sonde/internal/scenario"
)

// previewBytes caps the raw-body preview attached to non-JSON responses.
const previewBytes = 200

// Outcome is the result of one HTTP probe. A non-nil Err marks a transport
// failure; the response fields are then ignored.
type Outcome struct {
	Start       time.Time
	Elapsed     time.Duration
	Status      int
	ContentType string
	Body        []byte
	Err         error
}

// Builder turns probe outcomes into telemetry records. Pure apart from
// reading the wall clock; safe to share across scenarios.
type Builder struct {
	clock     core.Clock
	baseURL   string
	userAgent string
}

func NewBuilder(clock core.Clock, baseURL string) *Builder {
	return &Builder{
		clock:     clock,
		baseURL:   baseURL,
		userAgent: "sonde/1.0",
	}
}

// Build produces the telemetry record for one probe outcome. It never fails:
// body decode problems degrade to a text preview and transport failures
// become ERROR-classified records.
func (b *Builder) Build(endpoint string, sc scenario.Context, outcome Outcome) Record {
	if outcome.Err != nil {
		return b.buildFailure(endpoint, sc, outcome)
	}
	return b.buildResponse(endpoint, sc, outcome)
}

func (b *Builder) buildResponse(endpoint string, sc scenario.Context, outcome Outcome) Record {
	seconds := outcome.Elapsed.Seconds()
	status := outcome.Status
	size := len(outcome.Body)
	clientErr := status >= 400 && status < 500
	serverErr := status >= 500

	rec := Record{
		Timestamp: b.clock.Now().UTC().Format(time.RFC3339Nano),
		LogLevel:  LevelInfo,
		EventType: EventHTTPRequest,
		RequestID: requestID(outcome.Start),
		Scenario:  scenarioRef(sc),
		HTTP: HTTPFacts{
			Method:            http.MethodGet,
			URL:               b.baseURL + endpoint,
			Endpoint:          endpoint,
			StatusCode:        &status,
			ResponseTimeMs:    round2(seconds * 1000),
			ResponseSizeBytes: &size,
			UserAgent:         b.userAgent,
		},
		Metrics: RequestMetrics{
			ResponseTimeSeconds:  round4(seconds),
			ResponseTimeCategory: CategorizeResponseTime(seconds),
			Success:              status < 400,
			ClientError:          &clientErr,
			ServerError:          &serverErr,
			HealthScore:          HealthScore(status, seconds),
		},
		Service: ServiceIdentity{
			Name:        ServiceName,
			Version:     "unknown",
			Environment: "local",
		},
	}

	b.attachBody(&rec, outcome)
	return rec
}

// attachBody decodes JSON bodies into response_data and surfaces version and
// label into the service identity. Anything that fails to decode, or is not
// JSON at all, degrades to a truncated preview; no error escapes.
func (b *Builder) attachBody(rec *Record, outcome Outcome) {
	if len(outcome.Body) == 0 {
		return
	}
	if isJSONContentType(outcome.ContentType) && gjson.ValidBytes(outcome.Body) {
		rec.ResponseData = json.RawMessage(outcome.Body)
		if v := gjson.GetBytes(outcome.Body, "version"); v.Exists() {
			rec.Service.Version = v.String()
		}
		if l := gjson.GetBytes(outcome.Body, "label"); l.Exists() {
			rec.Service.Label = l.String()
		}
		return
	}
	preview := outcome.Body
	if len(preview) > previewBytes {
		preview = preview[:previewBytes]
	}
	rec.ResponsePreview = string(preview)
}

func (b *Builder) buildFailure(endpoint string, sc scenario.Context, outcome Outcome) Record {
	seconds := outcome.Elapsed.Seconds()
	kind, timeout, connErr := classifyFailure(outcome.Err)

	return Record{
		Timestamp: b.clock.Now().UTC().Format(time.RFC3339Nano),
		LogLevel:  LevelError,
		EventType: EventHTTPRequestError,
		RequestID: requestID(outcome.Start),
		Scenario:  scenarioRef(sc),
		HTTP: HTTPFacts{
			Method:         http.MethodGet,
			URL:            b.baseURL + endpoint,
			Endpoint:       endpoint,
			ErrorType:      kind,
			ErrorMessage:   outcome.Err.Error(),
			ResponseTimeMs: round2(seconds * 1000),
		},
		Metrics: RequestMetrics{
			ResponseTimeSeconds: round4(seconds),
			Success:             false,
			Timeout:             &timeout,
			ConnectionError:     &connErr,
			HealthScore:         0,
		},
		Service: ServiceIdentity{
			Name:        ServiceName,
			Version:     "unknown",
			Environment: "local",
		},
	}
}

// CategorizeResponseTime buckets an elapsed time in seconds. The buckets
// partition [0, inf): exactly one applies for every non-negative input.
func CategorizeResponseTime(seconds float64) string {
	switch {
	case seconds < 0.1:
		return "excellent"
	case seconds < 0.5:
		return "good"
	case seconds < 1.0:
		return "acceptable"
	case seconds < 3.0:
		return "slow"
	default:
		return "unacceptable"
	}
}

// HealthScore scores one request 0-100. Status and latency deductions are
// independent and both applied; the result is clamped at 0.
func HealthScore(status int, seconds float64) int {
	score := 100

	if status >= 500 {
		score -= 50
	} else if status >= 400 {
		score -= 30
	}

	if seconds > 3.0 {
		score -= 30
	} else if seconds > 1.0 {
		score -= 15
	} else if seconds > 0.5 {
		score -= 5
	}

	if score < 0 {
		return 0
	}
	return score
}

// requestID derives a process-unique id from the probe's start timestamp.
func requestID(start time.Time) string {
	return fmt.Sprintf("req_%d", start.UnixMicro())
}

func scenarioRef(sc scenario.Context) ScenarioRef {
	return ScenarioRef{
		Name:        sc.Name,
		Description: sc.Description,
		Tags:        sc.Tags,
	}
}

func isJSONContentType(ct string) bool {
	return strings.HasPrefix(ct, "application/json")
}

// classifyFailure maps a transport error to its wire kind plus the timeout
// and connection-error flags.
func classifyFailure(err error) (kind string, timeout, connErr bool) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout", true, false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return "connection_error", false, true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection_error", false, true
	}
	return "request_error", false, false
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
