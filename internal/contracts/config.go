// pattern: Functional Core
package contracts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	// ConfigFilePath is the canonical config location under the working directory.
	ConfigFilePath = "bridge.config.json"

	// ConfigSchemaVersionV1 is the current supported config schema version.
	ConfigSchemaVersionV1 = "1"
)

// SupportedConfigSchemaVersions is ordered for deterministic mismatch messaging.
var SupportedConfigSchemaVersions = []string{ConfigSchemaVersionV1}

// Contracted key formats.
var (
	JiraIssueKeyPattern   = regexp.MustCompile(`^[A-Z][A-Z0-9]+-[0-9]+$`)
	JiraProjectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]+$`)
)

// SiteRole names one side of the bridge.
type SiteRole string

const (
	SiteRoleSource SiteRole = "source"
	SiteRoleTarget SiteRole = "target"
)

// AuthType selects how requests to a site are authenticated.
type AuthType string

const (
	AuthTypeBasic  AuthType = "Basic"
	AuthTypeBearer AuthType = "Bearer"
)

// Config models bridge.config.json.
type Config struct {
	ConfigVersion   string     `json:"config_version"`
	Source          SiteConfig `json:"source"`
	Target          SiteConfig `json:"target"`
	SyncIssueTypes  []string   `json:"sync_issue_types,omitempty"`
	CreateIssueType string     `json:"create_issue_type,omitempty"`
	MappingPath     string     `json:"mapping_path,omitempty"`
	StagingDir      string     `json:"staging_dir,omitempty"`
}

// SiteConfig identifies one Jira site. The API token may be omitted from the
// file and supplied via environment instead; token presence is checked at
// runtime resolution, not schema validation.
type SiteConfig struct {
	Name       string   `json:"name,omitempty"`
	AuthType   AuthType `json:"auth_type"`
	Domain     string   `json:"domain,omitempty"`
	Email      string   `json:"email,omitempty"`
	APIToken   string   `json:"api_token,omitempty"`
	CloudID    string   `json:"cloud_id,omitempty"`
	ProjectKey string   `json:"project_key"`
}

// ConfigErrorCode classifies typed config contract failures.
type ConfigErrorCode string

const (
	ConfigErrorCodeVersionMismatch  ConfigErrorCode = "config_version_mismatch"
	ConfigErrorCodeValidationFailed ConfigErrorCode = "config_validation_failed"
)

// ConfigContractError is implemented by all typed config contract errors.
type ConfigContractError interface {
	error
	Code() ConfigErrorCode
}

// ConfigValidationCode classifies deterministic validation failures.
type ConfigValidationCode string

const (
	ConfigValidationCodeRequired     ConfigValidationCode = "required"
	ConfigValidationCodeInvalidValue ConfigValidationCode = "invalid_value"
)

// ConfigValidationIssue identifies one validation failure.
type ConfigValidationIssue struct {
	Path    string
	Code    ConfigValidationCode
	Message string
}

// ConfigValidationError is returned when schema/content validation fails.
type ConfigValidationError struct {
	Issues []ConfigValidationIssue
}

func (e ConfigValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid configuration"
	}

	first := e.Issues[0]
	return fmt.Sprintf("invalid configuration: %s (%s: %s)", first.Path, first.Code, first.Message)
}

// Code returns a stable typed error code.
func (ConfigValidationError) Code() ConfigErrorCode {
	return ConfigErrorCodeValidationFailed
}

// ConfigVersionMismatchError is returned when config_version is unsupported.
type ConfigVersionMismatchError struct {
	Found     string
	Supported []string
}

func (e ConfigVersionMismatchError) Error() string {
	return fmt.Sprintf(
		"invalid configuration: unsupported config_version %q; supported versions: %s",
		e.Found,
		strings.Join(e.Supported, ", "),
	)
}

// Code returns a stable typed error code.
func (ConfigVersionMismatchError) Code() ConfigErrorCode {
	return ConfigErrorCodeVersionMismatch
}

// ValidateConfig enforces the schema contract with deterministic issue ordering.
func ValidateConfig(config Config) error {
	issues := make([]ConfigValidationIssue, 0)

	version := strings.TrimSpace(config.ConfigVersion)
	if version == "" {
		issues = appendIssue(issues, "config_version", ConfigValidationCodeRequired, "must be set")
	} else if !isSupportedVersion(version) {
		return ConfigVersionMismatchError{
			Found:     version,
			Supported: append([]string(nil), SupportedConfigSchemaVersions...),
		}
	}

	issues = append(issues, validateSiteConfig(string(SiteRoleSource), config.Source)...)
	issues = append(issues, validateSiteConfig(string(SiteRoleTarget), config.Target)...)

	for i, issueType := range config.SyncIssueTypes {
		if strings.TrimSpace(issueType) == "" {
			issues = appendIssue(issues, fmt.Sprintf("sync_issue_types[%d]", i), ConfigValidationCodeInvalidValue, "must not be empty")
		}
	}

	if config.CreateIssueType != "" && strings.TrimSpace(config.CreateIssueType) == "" {
		issues = appendIssue(issues, "create_issue_type", ConfigValidationCodeInvalidValue, "must not be only whitespace")
	}
	if config.MappingPath != "" && strings.TrimSpace(config.MappingPath) == "" {
		issues = appendIssue(issues, "mapping_path", ConfigValidationCodeInvalidValue, "must not be only whitespace")
	}
	if config.StagingDir != "" && strings.TrimSpace(config.StagingDir) == "" {
		issues = appendIssue(issues, "staging_dir", ConfigValidationCodeInvalidValue, "must not be only whitespace")
	}

	if len(issues) == 0 {
		return nil
	}

	sortValidationIssues(issues)
	return ConfigValidationError{Issues: issues}
}

func validateSiteConfig(path string, site SiteConfig) []ConfigValidationIssue {
	issues := make([]ConfigValidationIssue, 0)

	switch site.AuthType {
	case AuthTypeBasic:
		if strings.TrimSpace(site.Domain) == "" {
			issues = appendIssue(issues, path+".domain", ConfigValidationCodeRequired, "must be set for Basic auth")
		}
		if strings.TrimSpace(site.Email) == "" {
			issues = appendIssue(issues, path+".email", ConfigValidationCodeRequired, "must be set for Basic auth")
		}
	case AuthTypeBearer:
		if strings.TrimSpace(site.CloudID) == "" {
			issues = appendIssue(issues, path+".cloud_id", ConfigValidationCodeRequired, "must be set for Bearer auth")
		}
	case "":
		issues = appendIssue(issues, path+".auth_type", ConfigValidationCodeRequired, "must be set")
	default:
		issues = appendIssue(issues, path+".auth_type", ConfigValidationCodeInvalidValue, "must be one of: Basic, Bearer")
	}

	projectKey := strings.TrimSpace(site.ProjectKey)
	if projectKey == "" {
		issues = appendIssue(issues, path+".project_key", ConfigValidationCodeRequired, "must be set")
	} else if !JiraProjectKeyPattern.MatchString(projectKey) {
		issues = appendIssue(issues, path+".project_key", ConfigValidationCodeInvalidValue, "must be an uppercase Jira project key")
	}

	return issues
}

func appendIssue(issues []ConfigValidationIssue, path string, code ConfigValidationCode, message string) []ConfigValidationIssue {
	return append(issues, ConfigValidationIssue{Path: path, Code: code, Message: message})
}

func sortValidationIssues(issues []ConfigValidationIssue) {
	sort.SliceStable(issues, func(i int, j int) bool {
		if issues[i].Path != issues[j].Path {
			return issues[i].Path < issues[j].Path
		}
		if issues[i].Code != issues[j].Code {
			return issues[i].Code < issues[j].Code
		}
		return issues[i].Message < issues[j].Message
	})
}

func isSupportedVersion(version string) bool {
	for _, supported := range SupportedConfigSchemaVersions {
		if version == supported {
			return true
		}
	}
	return false
}
