package perf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	httpclient "github.com/pweiskircher/jira-bridge/internal/http"
	"github.com/pweiskircher/jira-bridge/internal/jira"
	"github.com/pweiskircher/jira-bridge/internal/staging"
	"github.com/pweiskircher/jira-bridge/internal/sync/attach"
	"github.com/pweiskircher/jira-bridge/internal/sync/engine"
)

const (
	perfTargetIssueCount = 200
	prdSyncEnvelope      = 60 * time.Second
)

type syncHarnessConfig struct {
	IssueCount   int
	PageSize     int
	HTTPTimeout  time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	RetryOnCodes map[int]struct{}
}

type syncGuardrails struct {
	MinPageSize int
	MaxPageSize int
	MinTimeout  time.Duration
	MaxTimeout  time.Duration
	MinAttempts int
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

var defaultSyncGuardrails = syncGuardrails{
	MinPageSize: 25,
	MaxPageSize: 200,
	MinTimeout:  5 * time.Second,
	MaxTimeout:  2 * time.Minute,
	MinAttempts: 1,
	MaxAttempts: 6,
	MinBackoff:  10 * time.Millisecond,
	MaxBackoff:  5 * time.Second,
}

type harnessMetrics struct {
	Duration             time.Duration
	SourcePageRequests   int
	TotalSearchAttempts  int
	RetryAttempts        int
	CreatedIssueCount    int
	MetadataWriteCount   int
	ProcessedIssueCount  int
	ErrorCount           int
	PRDEnvelopeSatisfied bool
}

func TestSyncPerformanceHarness200Issues(t *testing.T) {
	cfg := syncHarnessConfig{
		IssueCount:   perfTargetIssueCount,
		PageSize:     40,
		HTTPTimeout:  10 * time.Second,
		MaxAttempts:  3,
		BaseBackoff:  10 * time.Millisecond,
		RetryOnCodes: map[int]struct{}{http.StatusTooManyRequests: {}},
	}

	if err := validateSyncHarnessConfig(cfg, defaultSyncGuardrails); err != nil {
		t.Fatalf("expected config to satisfy guardrails, got %v", err)
	}

	metrics := runSyncHarness(t, cfg)

	expectedPages := cfg.IssueCount / cfg.PageSize
	if cfg.IssueCount%cfg.PageSize != 0 {
		expectedPages++
	}

	if metrics.SourcePageRequests != expectedPages {
		t.Fatalf("expected %d source page requests, got %d", expectedPages, metrics.SourcePageRequests)
	}
	if metrics.RetryAttempts != 1 {
		t.Fatalf("expected one retry attempt from injected 429, got %d", metrics.RetryAttempts)
	}
	if metrics.TotalSearchAttempts != expectedPages+1 {
		t.Fatalf("expected %d total search attempts, got %d", expectedPages+1, metrics.TotalSearchAttempts)
	}

	if metrics.ProcessedIssueCount != cfg.IssueCount || metrics.CreatedIssueCount != cfg.IssueCount {
		t.Fatalf("expected all issues processed and created, got processed=%d created=%d",
			metrics.ProcessedIssueCount, metrics.CreatedIssueCount)
	}
	if metrics.ErrorCount != 0 {
		t.Fatalf("expected a clean run, got %d errors", metrics.ErrorCount)
	}
	if metrics.MetadataWriteCount != 2*cfg.IssueCount {
		t.Fatalf("expected two metadata writes per created issue, got %d", metrics.MetadataWriteCount)
	}

	if !metrics.PRDEnvelopeSatisfied {
		t.Fatalf("expected duration %s to satisfy sync envelope %s", metrics.Duration, prdSyncEnvelope)
	}

	t.Logf("sync harness metrics: duration=%s pages=%d attempts=%d retries=%d created=%d metadata_writes=%d",
		metrics.Duration, metrics.SourcePageRequests, metrics.TotalSearchAttempts,
		metrics.RetryAttempts, metrics.CreatedIssueCount, metrics.MetadataWriteCount)
}

func TestSyncHarnessTimeoutAndRetryBudget(t *testing.T) {
	cfg := syncHarnessConfig{
		IssueCount:  1,
		PageSize:    1,
		HTTPTimeout: 25 * time.Millisecond,
		MaxAttempts: 3,
		BaseBackoff: 5 * time.Millisecond,
	}

	attempts := 0
	adapter, err := jira.NewSiteAdapter(jira.SiteAdapterOptions{
		Site: harnessSite("CUX"),
		HTTPDoer: doerFunc(func(req *http.Request) (*http.Response, error) {
			attempts++
			<-req.Context().Done()
			return nil, req.Context().Err()
		}),
		RetryOptions: httpclient.Options{
			Timeout:     cfg.HTTPTimeout,
			MaxAttempts: cfg.MaxAttempts,
			BaseBackoff: cfg.BaseBackoff,
		},
	})
	if err != nil {
		t.Fatalf("failed to construct adapter: %v", err)
	}

	started := time.Now()
	_, err = adapter.SearchIssues(context.Background(), jira.SearchRequest{JQL: "project = CUX", PageSize: cfg.PageSize})
	elapsed := time.Since(started)
	if err == nil {
		t.Fatalf("expected timeout failure")
	}

	if attempts != cfg.MaxAttempts {
		t.Fatalf("expected %d attempts before failure, got %d", cfg.MaxAttempts, attempts)
	}

	minExpected := (time.Duration(cfg.MaxAttempts) * cfg.HTTPTimeout) + (cfg.BaseBackoff + 2*cfg.BaseBackoff)
	if elapsed < minExpected {
		t.Fatalf("expected elapsed time >= retry budget floor %s, got %s", minExpected, elapsed)
	}
}

func TestSyncHarnessGuardrailsRejectOutOfEnvelopeTuning(t *testing.T) {
	tests := []struct {
		name string
		cfg  syncHarnessConfig
	}{
		{name: "page size too small", cfg: syncHarnessConfig{IssueCount: perfTargetIssueCount, PageSize: 10, HTTPTimeout: 10 * time.Second, MaxAttempts: 3, BaseBackoff: 500 * time.Millisecond}},
		{name: "page size too large", cfg: syncHarnessConfig{IssueCount: perfTargetIssueCount, PageSize: 500, HTTPTimeout: 10 * time.Second, MaxAttempts: 3, BaseBackoff: 500 * time.Millisecond}},
		{name: "timeout too low", cfg: syncHarnessConfig{IssueCount: perfTargetIssueCount, PageSize: 100, HTTPTimeout: 2 * time.Second, MaxAttempts: 3, BaseBackoff: 500 * time.Millisecond}},
		{name: "retry attempts too high", cfg: syncHarnessConfig{IssueCount: perfTargetIssueCount, PageSize: 100, HTTPTimeout: 10 * time.Second, MaxAttempts: 12, BaseBackoff: 500 * time.Millisecond}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := validateSyncHarnessConfig(tc.cfg, defaultSyncGuardrails); err == nil {
				t.Fatalf("expected guardrail validation failure")
			}
		})
	}
}

func runSyncHarness(t *testing.T, cfg syncHarnessConfig) harnessMetrics {
	t.Helper()

	var searchAttempts int32
	var retryAttempts int32
	var metadataWrites int32
	var createdCounter int32
	pageSeen := map[int]bool{}
	pageMu := sync.Mutex{}

	sourceDoer := doerFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case req.URL.Path == "/rest/api/3/myself":
			return responseWithStatus(http.StatusOK, `{"accountId":"acc-src","displayName":"Perf Bot"}`), nil

		case req.URL.Path == "/rest/api/3/search/jql":
			atomic.AddInt32(&searchAttempts, 1)

			startAt, err := strconv.Atoi(req.URL.Query().Get("startAt"))
			if err != nil {
				return nil, err
			}
			maxResults, err := strconv.Atoi(req.URL.Query().Get("maxResults"))
			if err != nil {
				return nil, err
			}

			pageMu.Lock()
			isFirstAttemptForPage := !pageSeen[startAt]
			if isFirstAttemptForPage {
				pageSeen[startAt] = true
			}
			pageMu.Unlock()

			if startAt == 0 && isFirstAttemptForPage {
				atomic.AddInt32(&retryAttempts, 1)
				return responseWithStatus(http.StatusTooManyRequests, `{"errorMessages":["rate limited"]}`), nil
			}

			issues := make([]map[string]any, 0, maxResults)
			for index := startAt; index < startAt+maxResults && index < cfg.IssueCount; index++ {
				issues = append(issues, map[string]any{
					"id":  fmt.Sprintf("%d", 10000+index),
					"key": fmt.Sprintf("CUX-%d", index+1),
					"fields": map[string]any{
						"summary":   fmt.Sprintf("Synthetic defect %d", index+1),
						"issuetype": map[string]any{"name": "Bug"},
						"status":    map[string]any{"name": "Open"},
						"updated":   "2026-02-20T00:00:00.000+0000",
					},
				})
			}

			responsePayload, err := json.Marshal(map[string]any{
				"startAt":    startAt,
				"maxResults": maxResults,
				"total":      cfg.IssueCount,
				"isLast":     startAt+len(issues) >= cfg.IssueCount,
				"issues":     issues,
			})
			if err != nil {
				return nil, err
			}
			return responseWithStatus(http.StatusOK, string(responsePayload)), nil

		case strings.HasPrefix(req.URL.Path, "/rest/api/3/issue/") && req.Method == http.MethodGet:
			return responseWithStatus(http.StatusOK, `{"fields":{"attachment":[]}}`), nil
		}

		return responseWithStatus(http.StatusNotFound, fmt.Sprintf(`{"errorMessages":["unexpected source request %s %s"]}`, req.Method, req.URL.Path)), nil
	})

	targetDoer := doerFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case req.URL.Path == "/rest/api/3/myself":
			return responseWithStatus(http.StatusOK, `{"accountId":"acc-tgt","displayName":"Perf Bot"}`), nil

		case req.URL.Path == "/rest/api/3/search/jql":
			return responseWithStatus(http.StatusOK, `{"startAt":0,"maxResults":100,"total":0,"isLast":true,"issues":[]}`), nil

		case req.URL.Path == "/rest/api/3/issue" && req.Method == http.MethodPost:
			n := atomic.AddInt32(&createdCounter, 1)
			body := fmt.Sprintf(`{"id":"%d","key":"YOR-%d"}`, 20000+n, n)
			return responseWithStatus(http.StatusCreated, body), nil

		case strings.HasPrefix(req.URL.Path, "/rest/api/3/issue/") && req.Method == http.MethodPut:
			atomic.AddInt32(&metadataWrites, 1)
			return responseWithStatus(http.StatusNoContent, ""), nil

		case strings.HasPrefix(req.URL.Path, "/rest/api/3/issue/") && req.Method == http.MethodGet:
			return responseWithStatus(http.StatusOK, `{"fields":{"attachment":[]}}`), nil
		}

		return responseWithStatus(http.StatusNotFound, fmt.Sprintf(`{"errorMessages":["unexpected target request %s %s"]}`, req.Method, req.URL.Path)), nil
	})

	retryOptions := httpclient.Options{
		Timeout:      cfg.HTTPTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		BaseBackoff:  cfg.BaseBackoff,
		RetryOnCodes: cfg.RetryOnCodes,
	}

	source, err := jira.NewSiteAdapter(jira.SiteAdapterOptions{Site: harnessSite("CUX"), HTTPDoer: sourceDoer, RetryOptions: retryOptions})
	if err != nil {
		t.Fatalf("failed to construct source adapter: %v", err)
	}
	target, err := jira.NewSiteAdapter(jira.SiteAdapterOptions{Site: harnessSite("YOR"), HTTPDoer: targetDoer, RetryOptions: retryOptions})
	if err != nil {
		t.Fatalf("failed to construct target adapter: %v", err)
	}

	area, err := staging.New(filepath.Join(t.TempDir(), ".bridge", "attachments"))
	if err != nil {
		t.Fatalf("failed to prepare staging area: %v", err)
	}

	merger := attach.NewMerger(attach.MergerOptions{
		Source:           source,
		Target:           target,
		Area:             area,
		SourceProjectKey: "CUX",
		TargetProjectKey: "YOR",
		Logger:           zap.NewNop(),
	})

	eng := engine.New(engine.Options{
		Source:           source,
		Target:           target,
		Merger:           merger,
		Rules:            harnessRules(),
		SourceProjectKey: "CUX",
		TargetProjectKey: "YOR",
		IssueTypes:       []string{"Bug"},
		PageSize:         cfg.PageSize,
		Logger:           zap.NewNop(),
		Now:              func() time.Time { return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC) },
	})

	started := time.Now()
	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("expected sync harness success, got %v", err)
	}
	duration := time.Since(started)

	return harnessMetrics{
		Duration:             duration,
		SourcePageRequests:   len(pageSeen),
		TotalSearchAttempts:  int(atomic.LoadInt32(&searchAttempts)),
		RetryAttempts:        int(atomic.LoadInt32(&retryAttempts)),
		CreatedIssueCount:    result.Counts.Created,
		MetadataWriteCount:   int(atomic.LoadInt32(&metadataWrites)),
		ProcessedIssueCount:  result.Counts.Processed,
		ErrorCount:           result.Counts.Errors,
		PRDEnvelopeSatisfied: duration <= prdSyncEnvelope,
	}
}

func validateSyncHarnessConfig(cfg syncHarnessConfig, guardrails syncGuardrails) error {
	if cfg.IssueCount < perfTargetIssueCount {
		return fmt.Errorf("issue count must be at least %d", perfTargetIssueCount)
	}
	if cfg.PageSize < guardrails.MinPageSize || cfg.PageSize > guardrails.MaxPageSize {
		return fmt.Errorf("page size %d out of guardrail range [%d,%d]", cfg.PageSize, guardrails.MinPageSize, guardrails.MaxPageSize)
	}
	if cfg.HTTPTimeout < guardrails.MinTimeout || cfg.HTTPTimeout > guardrails.MaxTimeout {
		return fmt.Errorf("http timeout %s out of guardrail range [%s,%s]", cfg.HTTPTimeout, guardrails.MinTimeout, guardrails.MaxTimeout)
	}
	if cfg.MaxAttempts < guardrails.MinAttempts || cfg.MaxAttempts > guardrails.MaxAttempts {
		return fmt.Errorf("max attempts %d out of guardrail range [%d,%d]", cfg.MaxAttempts, guardrails.MinAttempts, guardrails.MaxAttempts)
	}
	if cfg.BaseBackoff < guardrails.MinBackoff || cfg.BaseBackoff > guardrails.MaxBackoff {
		return fmt.Errorf("base backoff %s out of guardrail range [%s,%s]", cfg.BaseBackoff, guardrails.MinBackoff, guardrails.MaxBackoff)
	}
	return nil
}

func harnessRules() []contracts.FieldMappingRule {
	return []contracts.FieldMappingRule{
		{
			Kind:          contracts.MappingKindSystemField,
			Strategy:      contracts.SyncStrategyDirectCopy,
			SourceFieldID: "summary",
			TargetFieldID: "summary",
			SyncDirection: contracts.SyncDirectionBidirectional,
		},
		{
			Kind:          contracts.MappingKindCustomField,
			Strategy:      contracts.SyncStrategySyncMetadata,
			MetadataType:  contracts.MetadataTypeCustomerIssueID,
			TargetFieldID: "customfield_30001",
		},
		{
			Kind:          contracts.MappingKindCustomField,
			Strategy:      contracts.SyncStrategySyncMetadata,
			MetadataType:  contracts.MetadataTypeLastSyncTime,
			TargetFieldID: "customfield_30002",
		},
	}
}

func harnessSite(projectKey string) contracts.SiteConfig {
	return contracts.SiteConfig{
		AuthType:   contracts.AuthTypeBasic,
		Domain:     "perf.example.atlassian.net",
		Email:      "perf@example.com",
		APIToken:   "token",
		ProjectKey: projectKey,
	}
}

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func responseWithStatus(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}
