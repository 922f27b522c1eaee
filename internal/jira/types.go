package jira

import (
	"context"
	"io"

	"github.com/pweiskircher/jira-bridge/internal/issue"
)

// Adapter is the full remote surface one bridged site exposes. Both sites
// get their own instance; everything else consumes the narrowest slice it
// needs.
type Adapter interface {
	Myself(ctx context.Context) (User, error)
	GetProject(ctx context.Context, projectKey string) (Project, error)
	SearchIssues(ctx context.Context, request SearchRequest) ([]issue.Issue, error)
	CreateIssue(ctx context.Context, fields issue.Fields) (CreatedIssue, error)
	UpdateIssue(ctx context.Context, issueKey string, fields issue.Fields) error
	ListAttachments(ctx context.Context, issueKey string) ([]AttachmentRecord, error)
	DownloadAttachment(ctx context.Context, record AttachmentRecord) (io.ReadCloser, error)
	UploadAttachment(ctx context.Context, issueKey string, filename string, content io.Reader) error
	ListFields(ctx context.Context) ([]FieldDefinition, error)
}

// SearchRequest drives a paginated JQL search. Pages are fetched until a
// short page; callers receive the concatenated result.
type SearchRequest struct {
	JQL      string
	Fields   []string
	PageSize int
}

type User struct {
	AccountID   string
	DisplayName string
	Email       string
}

type Project struct {
	ID   string
	Key  string
	Name string
}

type AttachmentRecord struct {
	ID         string
	Filename   string
	ContentURL string
	MimeType   string
	Size       int64
}

type CreatedIssue struct {
	ID   string
	Key  string
	Self string
}

type FieldDefinition struct {
	ID         string
	Name       string
	Custom     bool
	SchemaType string
}
