// pattern: Imperative Shell
package staging

import (
	"io"
	"sort"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
	internalfs "github.com/pweiskircher/jira-bridge/internal/fs"
	"github.com/pweiskircher/jira-bridge/internal/issue"
)

// Area is the durable attachment staging store. Staged copies are grouped
// per target issue key and carry the owning project marker in their name,
// so one directory holds both sides' attachments across runs.
type Area struct {
	fs *internalfs.SafeFS
}

func New(root string) (*Area, error) {
	safe, err := internalfs.NewSafeFS(root)
	if err != nil {
		return nil, err
	}
	return &Area{fs: safe}, nil
}

func NewDefault() (*Area, error) {
	return New(contracts.DefaultStagingRootDir)
}

func (a *Area) Root() string {
	if a == nil || a.fs == nil {
		return ""
	}
	return a.fs.Root()
}

// Has reports whether a staged copy with this exact name exists.
func (a *Area) Has(targetKey string, name string) (bool, error) {
	relativePath, err := entryPath(targetKey, name)
	if err != nil {
		return false, err
	}
	return a.fs.Exists(relativePath)
}

// Put streams one attachment body into the staging area. The write is
// atomic; a failed transfer leaves no partial file behind.
func (a *Area) Put(targetKey string, name string, content io.Reader) (int64, error) {
	relativePath, err := entryPath(targetKey, name)
	if err != nil {
		return 0, err
	}
	return a.fs.WriteReaderAtomic(relativePath, content, 0o644)
}

// Open returns the staged copy for reading. The caller closes it.
func (a *Area) Open(targetKey string, name string) (io.ReadCloser, error) {
	relativePath, err := entryPath(targetKey, name)
	if err != nil {
		return nil, err
	}
	return a.fs.Open(relativePath)
}

// List returns the staged names for one target issue, sorted. A target
// that was never staged lists empty.
func (a *Area) List(targetKey string) ([]string, error) {
	if err := issue.ValidateIssueKey(targetKey); err != nil {
		return nil, err
	}

	entries, err := a.fs.ReadDir(targetKey)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func entryPath(targetKey string, name string) (string, error) {
	if err := issue.ValidateIssueKey(targetKey); err != nil {
		return "", err
	}
	if err := issue.SafeStagingName(name); err != nil {
		return "", err
	}
	return targetKey + "/" + name, nil
}
