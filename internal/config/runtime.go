// pattern: Functional Core
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pweiskircher/jira-bridge/internal/contracts"
)

const (
	EnvSourceAPIToken = "BRIDGE_SOURCE_API_TOKEN"
	EnvTargetAPIToken = "BRIDGE_TARGET_API_TOKEN"
	EnvSourceEmail    = "BRIDGE_SOURCE_EMAIL"
	EnvTargetEmail    = "BRIDGE_TARGET_EMAIL"
	EnvSourceDomain   = "BRIDGE_SOURCE_DOMAIN"
	EnvTargetCloudID  = "BRIDGE_TARGET_CLOUD_ID"
	EnvStagingDir     = "BRIDGE_STAGING_DIR"
)

// Environment carries the recognized BRIDGE_* overrides. Values here take
// precedence over file values; tokens usually arrive only this way.
type Environment struct {
	SourceAPIToken string
	TargetAPIToken string
	SourceEmail    string
	TargetEmail    string
	SourceDomain   string
	TargetCloudID  string
	StagingDir     string
}

type ResolveOptions struct {
	RequireTokens bool
}

// RuntimeSettings is the merged, validated configuration a command runs
// with: file values with environment overrides applied and defaults
// filled in.
type RuntimeSettings struct {
	Source contracts.SiteConfig
	Target contracts.SiteConfig

	SyncIssueTypes  []string
	CreateIssueType string
	MappingPath     string
	StagingDir      string
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables already set in the environment keep their
// values. A missing file is a non-event; the caller may log it at debug
// level.
func LoadEnvFile(path string) (bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = contracts.DefaultEnvFilePath
	}

	if _, err := os.Stat(resolved); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(resolved); err != nil {
		return false, &Error{Code: ErrorCodeEnvLoadFailed, Path: resolved, Err: err}
	}
	return true, nil
}

func EnvironmentFromOS() Environment {
	return EnvironmentFromLookup(os.LookupEnv)
}

func EnvironmentFromLookup(lookup func(string) (string, bool)) Environment {
	if lookup == nil {
		return Environment{}
	}

	return Environment{
		SourceAPIToken: lookupTrimmed(lookup, EnvSourceAPIToken),
		TargetAPIToken: lookupTrimmed(lookup, EnvTargetAPIToken),
		SourceEmail:    lookupTrimmed(lookup, EnvSourceEmail),
		TargetEmail:    lookupTrimmed(lookup, EnvTargetEmail),
		SourceDomain:   lookupTrimmed(lookup, EnvSourceDomain),
		TargetCloudID:  lookupTrimmed(lookup, EnvTargetCloudID),
		StagingDir:     lookupTrimmed(lookup, EnvStagingDir),
	}
}

// Resolve merges environment overrides into the file configuration and
// validates the result. Validation runs after the merge so a value
// supplied only via environment still satisfies its auth requirement.
func Resolve(config contracts.Config, env Environment, options ResolveOptions) (RuntimeSettings, error) {
	source := config.Source
	source.APIToken = firstNonEmpty(env.SourceAPIToken, source.APIToken)
	source.Email = firstNonEmpty(env.SourceEmail, source.Email)
	source.Domain = firstNonEmpty(env.SourceDomain, source.Domain)

	target := config.Target
	target.APIToken = firstNonEmpty(env.TargetAPIToken, target.APIToken)
	target.Email = firstNonEmpty(env.TargetEmail, target.Email)
	target.CloudID = firstNonEmpty(env.TargetCloudID, target.CloudID)

	merged := config
	merged.Source = source
	merged.Target = target
	if err := contracts.ValidateConfig(merged); err != nil {
		return RuntimeSettings{}, &ResolveError{
			Code:    ResolveErrorCodeInvalidConfig,
			Message: "configuration is invalid",
			Err:     err,
		}
	}

	if options.RequireTokens {
		if strings.TrimSpace(source.APIToken) == "" {
			return RuntimeSettings{}, &ResolveError{
				Code:    ResolveErrorCodeMissingToken,
				Message: EnvSourceAPIToken + " or source.api_token is required",
			}
		}
		if strings.TrimSpace(target.APIToken) == "" {
			return RuntimeSettings{}, &ResolveError{
				Code:    ResolveErrorCodeMissingToken,
				Message: EnvTargetAPIToken + " or target.api_token is required",
			}
		}
	}

	return RuntimeSettings{
		Source:          source,
		Target:          target,
		SyncIssueTypes:  append([]string(nil), merged.SyncIssueTypes...),
		CreateIssueType: firstNonEmpty(merged.CreateIssueType, contracts.DefaultCreateIssueType),
		MappingPath:     firstNonEmpty(merged.MappingPath, contracts.DefaultMappingFilePath),
		StagingDir:      firstNonEmpty(env.StagingDir, merged.StagingDir, contracts.DefaultStagingRootDir),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func lookupTrimmed(lookup func(string) (string, bool), key string) string {
	value, ok := lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
