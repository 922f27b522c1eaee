package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

// Doer is the slice of http.Client the retry layer needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	Timeout      time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	RetryOnCodes map[int]struct{}
}

type Sleeper interface {
	Sleep(d time.Duration)
}

// RetryClient retries transient failures with an exponential schedule. A
// Retry-After header longer than the scheduled delay takes precedence.
type RetryClient struct {
	doer        Doer
	timeout     time.Duration
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	retryCodes  map[int]struct{}
	sleeper     Sleeper
}

func NewRetryClient(doer Doer, options Options) *RetryClient {
	options = options.withDefaults()
	if doer == nil {
		doer = &http.Client{Timeout: options.Timeout}
	}

	return &RetryClient{
		doer:        doer,
		timeout:     options.Timeout,
		maxAttempts: options.MaxAttempts,
		baseBackoff: options.BaseBackoff,
		maxBackoff:  options.MaxBackoff,
		retryCodes:  options.RetryOnCodes,
		sleeper:     clockSleeper{},
	}
}

// WithSleeper returns a copy that waits through the given sleeper instead
// of the wall clock.
func (c *RetryClient) WithSleeper(sleeper Sleeper) *RetryClient {
	if c == nil || sleeper == nil {
		return c
	}

	clone := *c
	clone.sleeper = sleeper
	return &clone
}

// Do sends the request, replaying it while attempts remain and the failure
// is one the schedule covers. The returned response body carries the
// attempt's cancel func; callers release the deadline by closing it.
func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	if c == nil {
		return nil, errors.New("retry client is nil")
	}
	if req == nil {
		return nil, errors.New("request is nil")
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	schedule := c.newSchedule()
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		last := attempt == c.maxAttempts

		resp, cancel, err := c.attemptOnce(req, body)
		if err != nil {
			if last || !transientError(err) {
				return nil, err
			}
			c.sleep(nextDelay(schedule))
			continue
		}

		if last || !c.retryableStatus(resp.StatusCode) {
			return deliverResponse(resp, cancel), nil
		}

		delay := nextDelay(schedule)
		if hint := retryAfterHint(resp.Header.Get("Retry-After")); hint > delay {
			delay = hint
		}
		discardBody(resp.Body)
		cancel()
		c.sleep(delay)
	}

	return nil, errors.New("retry attempts exhausted")
}

// attemptOnce issues a single attempt on a fresh request. On error the
// attempt context is already released; on success the caller owns cancel.
func (c *RetryClient) attemptOnce(req *http.Request, body []byte) (*http.Response, context.CancelFunc, error) {
	attemptReq, cancel := c.attemptRequest(req, body)
	resp, err := c.doer.Do(attemptReq)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

// attemptRequest clones the request under a per-attempt deadline and
// rewinds the buffered body so every attempt sends the same payload.
func (c *RetryClient) attemptRequest(req *http.Request, body []byte) (*http.Request, context.CancelFunc) {
	ctx := req.Context()
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	clone := req.Clone(ctx)
	if body == nil {
		clone.Body = nil
		clone.GetBody = nil
		clone.ContentLength = 0
		return clone, cancel
	}

	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return clone, cancel
}

// newSchedule builds a fresh deterministic exponential schedule. Attempt
// pacing lives here; attempt counting stays in Do so MaxElapsedTime must
// never cut the schedule short.
func (c *RetryClient) newSchedule() backoff.BackOff {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = c.baseBackoff
	schedule.RandomizationFactor = 0
	schedule.Multiplier = 2
	schedule.MaxInterval = c.maxBackoff
	schedule.MaxElapsedTime = 0
	schedule.Reset()
	return schedule
}

func nextDelay(schedule backoff.BackOff) time.Duration {
	delay := schedule.NextBackOff()
	if delay == backoff.Stop {
		return 0
	}
	return delay
}

func (c *RetryClient) sleep(d time.Duration) {
	if d <= 0 || c.sleeper == nil {
		return
	}
	c.sleeper.Sleep(d)
}

func (c *RetryClient) retryableStatus(code int) bool {
	_, ok := c.retryCodes[code]
	return ok
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = contracts.DefaultHTTPTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = contracts.DefaultRetryMaxAttempts
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = contracts.DefaultRetryBaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = contracts.DefaultRetryMaxBackoff
	}
	if len(o.RetryOnCodes) == 0 {
		o.RetryOnCodes = map[int]struct{}{
			http.StatusTooManyRequests:     {},
			http.StatusInternalServerError: {},
			http.StatusBadGateway:          {},
			http.StatusServiceUnavailable:  {},
			http.StatusGatewayTimeout:      {},
		}
	}
	return o
}

// bufferBody drains the request body once so attempts can replay it from
// memory.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func transientError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}
	return false
}

// retryAfterHint reads a Retry-After header. Jira Cloud sends whole seconds
// on 429 responses; the HTTP-date form is handled as well.
func retryAfterHint(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

func discardBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// deliverResponse hands the attempt's cancel func to the response body so
// the deadline stays alive until the caller finishes streaming it.
func deliverResponse(resp *http.Response, cancel context.CancelFunc) *http.Response {
	if resp.Body == nil {
		cancel()
		return resp
	}
	resp.Body = &bodyWithCancel{ReadCloser: resp.Body, cancel: cancel}
	return resp
}

type bodyWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *bodyWithCancel) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}

type clockSleeper struct{}

func (clockSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
