package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pweiskircher/jira-bridge/internal/issue"
	"github.com/pweiskircher/jira-bridge/internal/jira"
)

const workspaceConfigJSON = `{
  "config_version": "1",
  "source": {
    "name": "Customer Jira",
    "auth_type": "Basic",
    "domain": "customer.atlassian.net",
    "email": "bot@example.com",
    "api_token": "token-1",
    "project_key": "CUX"
  },
  "target": {
    "name": "Internal Jira",
    "auth_type": "Bearer",
    "cloud_id": "cloud-123",
    "api_token": "token-2",
    "project_key": "YOR"
  },
  "sync_issue_types": ["Bug"]
}`

const workspaceMappingJSON = `[
  {
    "kind": "system-field",
    "strategy": "DIRECT_COPY",
    "sourceFieldId": "summary",
    "targetFieldId": "summary"
  },
  {
    "kind": "custom-field",
    "strategy": "MAPPED_SYNC",
    "sourceFieldId": "customfield_20001",
    "targetFieldId": "priority",
    "targetFieldName": "Priority",
    "syncDirection": "BIDIRECTIONAL",
    "valueMapping": {"Sev-1": "Medium", "Sev-3": "High"}
  },
  {
    "kind": "custom-field",
    "strategy": "SYNC_METADATA",
    "metadataType": "customer_issue_id",
    "targetFieldId": "customfield_30001",
    "targetFieldName": "Customer Issue ID"
  },
  {
    "kind": "custom-field",
    "strategy": "SYNC_METADATA",
    "metadataType": "last_sync_time",
    "targetFieldId": "customfield_30002"
  }
]`

func writeWorkspace(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bridge.config.json"), []byte(workspaceConfigJSON), 0o644); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "field_mapping.json"), []byte(workspaceMappingJSON), 0o644); err != nil {
		t.Fatalf("failed to seed mapping table: %v", err)
	}
	return dir
}

type fakeAdapter struct {
	user    jira.User
	userErr error

	project    jira.Project
	projectErr error

	fields    []jira.FieldDefinition
	fieldsErr error

	issues    []issue.Issue
	searchErr error
	searches  []jira.SearchRequest

	attachments map[string][]jira.AttachmentRecord

	createdKey string
	created    []issue.Fields
	updated    map[string][]issue.Fields
}

func (f *fakeAdapter) Myself(ctx context.Context) (jira.User, error) {
	if f.userErr != nil {
		return jira.User{}, f.userErr
	}
	if f.user == (jira.User{}) {
		return jira.User{AccountID: "acc-1", DisplayName: "Bridge Bot"}, nil
	}
	return f.user, nil
}

func (f *fakeAdapter) GetProject(ctx context.Context, projectKey string) (jira.Project, error) {
	if f.projectErr != nil {
		return jira.Project{}, f.projectErr
	}
	if f.project == (jira.Project{}) {
		return jira.Project{ID: "10000", Key: projectKey, Name: projectKey + " Project"}, nil
	}
	return f.project, nil
}

func (f *fakeAdapter) SearchIssues(ctx context.Context, request jira.SearchRequest) ([]issue.Issue, error) {
	f.searches = append(f.searches, request)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return append([]issue.Issue(nil), f.issues...), nil
}

func (f *fakeAdapter) CreateIssue(ctx context.Context, fields issue.Fields) (jira.CreatedIssue, error) {
	f.created = append(f.created, fields)
	key := f.createdKey
	if key == "" {
		key = "YOR-100"
	}
	return jira.CreatedIssue{ID: "20000", Key: key}, nil
}

func (f *fakeAdapter) UpdateIssue(ctx context.Context, issueKey string, fields issue.Fields) error {
	if f.updated == nil {
		f.updated = map[string][]issue.Fields{}
	}
	f.updated[issueKey] = append(f.updated[issueKey], fields)
	return nil
}

func (f *fakeAdapter) ListAttachments(ctx context.Context, issueKey string) ([]jira.AttachmentRecord, error) {
	return append([]jira.AttachmentRecord(nil), f.attachments[issueKey]...), nil
}

func (f *fakeAdapter) DownloadAttachment(ctx context.Context, record jira.AttachmentRecord) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte("content of " + record.Filename))), nil
}

func (f *fakeAdapter) UploadAttachment(ctx context.Context, issueKey string, filename string, content io.Reader) error {
	if f.attachments == nil {
		f.attachments = map[string][]jira.AttachmentRecord{}
	}
	f.attachments[issueKey] = append(f.attachments[issueKey], jira.AttachmentRecord{
		ID:       "up-1",
		Filename: filename,
	})
	return nil
}

func (f *fakeAdapter) ListFields(ctx context.Context) ([]jira.FieldDefinition, error) {
	if f.fieldsErr != nil {
		return nil, f.fieldsErr
	}
	return append([]jira.FieldDefinition(nil), f.fields...), nil
}

func sourceFixtureIssue(key string) issue.Issue {
	return issue.Issue{
		ID:  "10007",
		Key: key,
		Fields: issue.Fields{
			"summary":           issue.String("Login fails"),
			"issuetype":         issue.NameOption("Bug"),
			"status":            issue.NameOption("Open"),
			"customfield_20001": issue.ValueOption("Sev-1"),
			"updated":           issue.String("2026-03-01T09:00:00.000+0000"),
		},
	}
}
