package contracts

import "time"

const (
	DefaultMappingFilePath = "field_mapping.json"
	DefaultStagingRootDir  = ".bridge/attachments"
	DefaultLockFilePath    = ".bridge/lock"
	DefaultEnvFilePath     = ".env"
)

const (
	DefaultSearchPageSize   = 100
	DefaultCreateIssueType  = "Bug"
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseBackoff = 500 * time.Millisecond
	DefaultRetryMaxBackoff  = 30 * time.Second

	// DefaultMediaTimeout bounds attachment transfers, which stream far
	// longer than JSON calls.
	DefaultMediaTimeout = 5 * time.Minute
)

const (
	DefaultLockStaleAfter     = 15 * time.Minute
	DefaultLockAcquireTimeout = 30 * time.Second
	DefaultLockPollInterval   = 200 * time.Millisecond
)

// DebugRecentWindow bounds source queries to the last day in debug mode.
const DebugRecentWindow = "-1d"

type CommandName string

const (
	CommandSync     CommandName = "sync"
	CommandWatch    CommandName = "watch"
	CommandCheck    CommandName = "check"
	CommandValidate CommandName = "validate"
	CommandFields   CommandName = "fields"
	CommandInspect  CommandName = "inspect"
)

type LockRequirement string

const (
	LockRequirementNone      LockRequirement = "none"
	LockRequirementExclusive LockRequirement = "exclusive"
)

// CommandLockPolicy freezes lock requirements for each command. Mutating
// commands are single-instance per staging root; read-only commands are not.
var CommandLockPolicy = map[CommandName]LockRequirement{
	CommandSync:     LockRequirementExclusive,
	CommandWatch:    LockRequirementExclusive,
	CommandCheck:    LockRequirementNone,
	CommandValidate: LockRequirementNone,
	CommandFields:   LockRequirementNone,
	CommandInspect:  LockRequirementNone,
}

func RequiresLock(command CommandName) bool {
	return CommandLockPolicy[command] == LockRequirementExclusive
}
