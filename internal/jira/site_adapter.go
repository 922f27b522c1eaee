// pattern: Imperative Shell
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	httpclient "github.com/pweiskircher/jira-bridge/internal/http"
	"github.com/pweiskircher/jira-bridge/internal/issue"
)

const maxResponseBodyBytes = 1 << 20

const gatewayBaseURL = "https://api.atlassian.com/ex/jira"

type SiteAdapterOptions struct {
	Site         contracts.SiteConfig
	HTTPDoer     httpclient.Doer
	RetryOptions httpclient.Options
}

// SiteAdapter talks to one Jira Cloud site over REST API v3. Basic sites
// are addressed by domain, Bearer sites through the Atlassian gateway by
// cloud id.
type SiteAdapter struct {
	baseURL    string
	authHeader string
	client     *httpclient.RetryClient
	media      *httpclient.RetryClient
	redactor   httpclient.Redactor
}

func NewSiteAdapter(options SiteAdapterOptions) (*SiteAdapter, error) {
	baseURL, err := siteBaseURL(options.Site)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(options.Site.APIToken)
	if token == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid jira adapter options: api token must be set",
		}
	}

	var authHeader string
	secrets := []string{token}
	switch options.Site.AuthType {
	case contracts.AuthTypeBearer:
		authHeader = "Bearer " + token
	default:
		email := strings.TrimSpace(options.Site.Email)
		if email == "" {
			return nil, &Error{
				Code:       ErrorCodeInvalidInput,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "invalid jira adapter options: email must be set for basic auth",
			}
		}
		authSecret := email + ":" + token
		authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(authSecret))
		secrets = append(secrets, authSecret)
	}
	secrets = append(secrets, authHeader)

	mediaOptions := options.RetryOptions
	if mediaOptions.Timeout <= 0 {
		mediaOptions.Timeout = contracts.DefaultMediaTimeout
	}

	return &SiteAdapter{
		baseURL:    baseURL,
		authHeader: authHeader,
		client:     httpclient.NewRetryClient(options.HTTPDoer, options.RetryOptions),
		media:      httpclient.NewRetryClient(options.HTTPDoer, mediaOptions),
		redactor:   httpclient.NewRedactor(secrets...),
	}, nil
}

func (a *SiteAdapter) Myself(ctx context.Context) (User, error) {
	if a == nil {
		return User{}, &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}

	var response myselfAPIResponse
	if err := a.doJSON(ctx, http.MethodGet, "/rest/api/3/myself", nil, nil, []int{http.StatusOK}, &response); err != nil {
		return User{}, err
	}

	return User{
		AccountID:   strings.TrimSpace(response.AccountID),
		DisplayName: strings.TrimSpace(response.DisplayName),
		Email:       strings.TrimSpace(response.Email),
	}, nil
}

func (a *SiteAdapter) GetProject(ctx context.Context, projectKey string) (Project, error) {
	if a == nil {
		return Project{}, &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}

	canonicalKey, err := validateProjectKey(projectKey)
	if err != nil {
		return Project{}, err
	}

	resourcePath := "/rest/api/3/project/" + url.PathEscape(canonicalKey)
	var response projectAPIResponse
	if err := a.doJSON(ctx, http.MethodGet, resourcePath, nil, nil, []int{http.StatusOK}, &response); err != nil {
		return Project{}, err
	}

	return Project{
		ID:   strings.TrimSpace(response.ID),
		Key:  strings.TrimSpace(response.Key),
		Name: strings.TrimSpace(response.Name),
	}, nil
}

func (a *SiteAdapter) SearchIssues(ctx context.Context, request SearchRequest) ([]issue.Issue, error) {
	if a == nil {
		return nil, &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}

	jql := strings.TrimSpace(request.JQL)
	if jql == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid search request: jql must be set",
		}
	}

	pageSize := request.PageSize
	if pageSize <= 0 {
		pageSize = contracts.DefaultSearchPageSize
	}
	fields := normalizeStringSlice(request.Fields)
	if len(fields) == 0 {
		fields = []string{"*all", "attachment"}
	}

	issues := make([]issue.Issue, 0, pageSize)
	for startAt := 0; ; {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(pageSize))
		query.Set("fields", strings.Join(fields, ","))

		var response searchAPIResponse
		if err := a.doJSON(ctx, http.MethodGet, "/rest/api/3/search/jql", query, nil, []int{http.StatusOK}, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Issues {
			issues = append(issues, mapAPIIssue(item))
		}

		if response.IsLast || len(response.Issues) < pageSize {
			return issues, nil
		}
		startAt += len(response.Issues)
	}
}

func (a *SiteAdapter) CreateIssue(ctx context.Context, fields issue.Fields) (CreatedIssue, error) {
	if a == nil {
		return CreatedIssue{}, &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}
	if len(fields) == 0 {
		return CreatedIssue{}, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid create issue request: fields must not be empty",
		}
	}

	payload := map[string]any{"fields": fields}
	var response createdIssueAPIResponse
	if err := a.doJSON(ctx, http.MethodPost, "/rest/api/3/issue", nil, payload, []int{http.StatusCreated}, &response); err != nil {
		return CreatedIssue{}, err
	}

	return CreatedIssue{ID: response.ID, Key: response.Key, Self: response.Self}, nil
}

func (a *SiteAdapter) UpdateIssue(ctx context.Context, issueKey string, fields issue.Fields) error {
	if a == nil {
		return &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}

	canonicalKey, err := validateIssueKey(issueKey)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	resourcePath := "/rest/api/3/issue/" + url.PathEscape(canonicalKey)
	payload := map[string]any{"fields": fields}
	return a.doJSON(ctx, http.MethodPut, resourcePath, nil, payload, []int{http.StatusNoContent}, nil)
}

func (a *SiteAdapter) ListAttachments(ctx context.Context, issueKey string) ([]AttachmentRecord, error) {
	if a == nil {
		return nil, &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}

	canonicalKey, err := validateIssueKey(issueKey)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("fields", "attachment")

	resourcePath := "/rest/api/3/issue/" + url.PathEscape(canonicalKey)
	var response issueAttachmentsAPIResponse
	if err := a.doJSON(ctx, http.MethodGet, resourcePath, query, nil, []int{http.StatusOK}, &response); err != nil {
		return nil, err
	}

	records := make([]AttachmentRecord, 0, len(response.Fields.Attachment))
	for _, item := range response.Fields.Attachment {
		records = append(records, AttachmentRecord{
			ID:         strings.TrimSpace(item.ID),
			Filename:   strings.TrimSpace(item.Filename),
			ContentURL: strings.TrimSpace(item.Content),
			MimeType:   strings.TrimSpace(item.MimeType),
			Size:       item.Size,
		})
	}
	return records, nil
}

// DownloadAttachment streams the attachment body. The caller owns the
// returned reader and must close it.
func (a *SiteAdapter) DownloadAttachment(ctx context.Context, record AttachmentRecord) (io.ReadCloser, error) {
	if a == nil {
		return nil, &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}

	contentURL := strings.TrimSpace(record.ContentURL)
	if contentURL == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid attachment record: content URL must be set",
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return nil, &Error{
			Code:       ErrorCodeRequestBuild,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build attachment download request",
			Err:        err,
			redactor:   a.redactor,
		}
	}
	req.Header.Set("Authorization", a.authHeader)

	resp, err := a.media.Do(req)
	if err != nil {
		return nil, &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			Message:    "failed to execute attachment download",
			Err:        err,
			redactor:   a.redactor,
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
		drainAndCloseBody(resp.Body)
		return nil, a.statusError(resp.StatusCode, body)
	}

	return resp.Body, nil
}

func (a *SiteAdapter) UploadAttachment(ctx context.Context, issueKey string, filename string, content io.Reader) error {
	if a == nil {
		return &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}

	canonicalKey, err := validateIssueKey(issueKey)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(filename)
	if name == "" {
		return &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid upload request: filename must be set",
		}
	}
	if content == nil {
		return &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid upload request: content must be set",
		}
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", name)
	if err == nil {
		_, err = io.Copy(part, content)
	}
	if err == nil {
		err = form.Close()
	}
	if err != nil {
		return &Error{
			Code:       ErrorCodeRequestEncode,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to encode attachment upload form",
			Err:        err,
			redactor:   a.redactor,
		}
	}

	endpoint, err := a.endpointFor("/rest/api/3/issue/"+url.PathEscape(canonicalKey)+"/attachments", nil)
	if err != nil {
		return &Error{
			Code:       ErrorCodeRequestBuild,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build attachment upload URL",
			Err:        err,
			redactor:   a.redactor,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return &Error{
			Code:       ErrorCodeRequestBuild,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build attachment upload request",
			Err:        err,
			redactor:   a.redactor,
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")
	req.Header.Set("Authorization", a.authHeader)

	resp, err := a.media.Do(req)
	if err != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			Message:    "failed to execute attachment upload",
			Err:        err,
			redactor:   a.redactor,
		}
	}
	defer resp.Body.Close()

	responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if resp.StatusCode != http.StatusOK {
		return a.statusError(resp.StatusCode, responseBody)
	}
	return nil
}

func (a *SiteAdapter) ListFields(ctx context.Context) ([]FieldDefinition, error) {
	if a == nil {
		return nil, &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}

	var response []fieldAPIData
	if err := a.doJSON(ctx, http.MethodGet, "/rest/api/3/field", nil, nil, []int{http.StatusOK}, &response); err != nil {
		return nil, err
	}

	definitions := make([]FieldDefinition, 0, len(response))
	for _, item := range response {
		definitions = append(definitions, FieldDefinition{
			ID:         strings.TrimSpace(item.ID),
			Name:       strings.TrimSpace(item.Name),
			Custom:     item.Custom,
			SchemaType: strings.TrimSpace(item.Schema.Type),
		})
	}

	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].ID < definitions[j].ID
	})
	return definitions, nil
}

func (a *SiteAdapter) doJSON(ctx context.Context, method string, resourcePath string, query url.Values, payload any, expectedStatusCodes []int, out any) error {
	if len(expectedStatusCodes) == 0 {
		expectedStatusCodes = []int{http.StatusOK}
	}

	var requestBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return &Error{
				Code:       ErrorCodeRequestEncode,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "failed to encode jira request payload",
				Err:        err,
				redactor:   a.redactor,
			}
		}
		requestBody = bytes.NewReader(encoded)
	}

	endpoint, err := a.endpointFor(resourcePath, query)
	if err != nil {
		return &Error{
			Code:       ErrorCodeRequestBuild,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build jira request URL",
			Err:        err,
			redactor:   a.redactor,
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, requestBody)
	if err != nil {
		return &Error{
			Code:       ErrorCodeRequestBuild,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build jira request",
			Err:        err,
			redactor:   a.redactor,
		}
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", a.authHeader)

	resp, err := a.client.Do(req)
	if err != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			Message:    "failed to execute jira request",
			Err:        err,
			redactor:   a.redactor,
		}
	}
	defer resp.Body.Close()

	responseBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to read jira response body",
			Err:        readErr,
			redactor:   a.redactor,
		}
	}

	if !containsStatus(expectedStatusCodes, resp.StatusCode) {
		return a.statusError(resp.StatusCode, responseBody)
	}

	if out == nil || len(responseBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return &Error{
			Code:       ErrorCodeResponseDecode,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode jira response body",
			Err:        err,
			redactor:   a.redactor,
		}
	}

	return nil
}

func (a *SiteAdapter) statusError(statusCode int, body []byte) error {
	detail := extractAPIErrorMessage(body)
	if detail == "" {
		detail = strings.ToLower(http.StatusText(statusCode))
	}

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return &Error{
			Code:       ErrorCodeAuthFailed,
			ReasonCode: contracts.ReasonCodeAuthFailed,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("jira authentication failed with status %d: %s", statusCode, detail),
			redactor:   a.redactor,
		}
	}

	return &Error{
		Code:       ErrorCodeUnexpectedStatus,
		ReasonCode: contracts.ReasonCodeTransportError,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("jira request failed with status %d: %s", statusCode, detail),
		redactor:   a.redactor,
	}
}

func (a *SiteAdapter) endpointFor(resourcePath string, query url.Values) (string, error) {
	trimmedPath := "/" + strings.TrimLeft(strings.TrimSpace(resourcePath), "/")
	parsedBase, err := url.Parse(a.baseURL)
	if err != nil {
		return "", err
	}

	parsedBase.Path = strings.TrimRight(parsedBase.Path, "/") + trimmedPath
	if len(query) > 0 {
		parsedBase.RawQuery = query.Encode()
	}
	return parsedBase.String(), nil
}

// siteBaseURL derives the REST root for one site. Basic sites are reached
// on their own domain, Bearer sites through the Atlassian API gateway.
func siteBaseURL(site contracts.SiteConfig) (string, error) {
	switch site.AuthType {
	case contracts.AuthTypeBearer:
		cloudID := strings.TrimSpace(site.CloudID)
		if cloudID == "" {
			return "", &Error{
				Code:       ErrorCodeInvalidInput,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "invalid jira adapter options: cloud id must be set for bearer auth",
			}
		}
		return gatewayBaseURL + "/" + url.PathEscape(cloudID), nil
	default:
		domain := strings.TrimSpace(site.Domain)
		if domain == "" {
			return "", &Error{
				Code:       ErrorCodeInvalidInput,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "invalid jira adapter options: domain must be set for basic auth",
			}
		}
		if !strings.Contains(domain, "://") {
			domain = "https://" + domain
		}

		parsed, err := url.Parse(domain)
		if err != nil {
			return "", &Error{
				Code:       ErrorCodeInvalidInput,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "invalid jira adapter options: domain is malformed",
				Err:        err,
			}
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return "", &Error{
				Code:       ErrorCodeInvalidInput,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "invalid jira adapter options: domain must include a host",
			}
		}

		parsed.Path = strings.TrimRight(parsed.Path, "/")
		parsed.RawQuery = ""
		parsed.Fragment = ""
		return parsed.String(), nil
	}
}

func validateIssueKey(issueKey string) (string, error) {
	canonicalKey := strings.TrimSpace(issueKey)
	if !contracts.JiraIssueKeyPattern.MatchString(canonicalKey) {
		return "", &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid issue key",
		}
	}
	return canonicalKey, nil
}

func validateProjectKey(projectKey string) (string, error) {
	canonicalKey := strings.TrimSpace(projectKey)
	if !contracts.JiraProjectKeyPattern.MatchString(canonicalKey) {
		return "", &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid project key",
		}
	}
	return canonicalKey, nil
}

func containsStatus(statuses []int, candidate int) bool {
	for _, status := range statuses {
		if status == candidate {
			return true
		}
	}
	return false
}

func normalizeStringSlice(values []string) []string {
	if values == nil {
		return nil
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func extractAPIErrorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
		Message       string            `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return trimmed
	}

	parts := make([]string, 0, len(payload.ErrorMessages)+len(payload.Errors)+1)
	for _, message := range payload.ErrorMessages {
		message = strings.TrimSpace(message)
		if message != "" {
			parts = append(parts, message)
		}
	}

	if message := strings.TrimSpace(payload.Message); message != "" {
		parts = append(parts, message)
	}

	if len(payload.Errors) > 0 {
		keys := make([]string, 0, len(payload.Errors))
		for key := range payload.Errors {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := strings.TrimSpace(payload.Errors[key])
			if value == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", key, value))
		}
	}

	if len(parts) == 0 {
		return trimmed
	}
	return strings.Join(parts, "; ")
}

func drainAndCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

type myselfAPIResponse struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
}

type projectAPIResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type searchAPIResponse struct {
	StartAt    int            `json:"startAt"`
	MaxResults int            `json:"maxResults"`
	Total      int            `json:"total"`
	IsLast     bool           `json:"isLast"`
	Issues     []issueAPIData `json:"issues"`
}

type issueAPIData struct {
	ID     string                     `json:"id"`
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type createdIssueAPIResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type issueAttachmentsAPIResponse struct {
	Fields struct {
		Attachment []attachmentAPIData `json:"attachment"`
	} `json:"fields"`
}

type attachmentAPIData struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

type fieldAPIData struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
	Schema struct {
		Type   string `json:"type"`
		Custom string `json:"custom"`
	} `json:"schema"`
}

func mapAPIIssue(raw issueAPIData) issue.Issue {
	fields := make(issue.Fields, len(raw.Fields))
	for id, value := range raw.Fields {
		fields[id] = issue.FromRaw(cloneRawJSON(value))
	}
	return issue.Issue{
		ID:     strings.TrimSpace(raw.ID),
		Key:    strings.TrimSpace(raw.Key),
		Fields: fields,
	}
}

func cloneRawJSON(value json.RawMessage) json.RawMessage {
	if len(value) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), value...)
}
