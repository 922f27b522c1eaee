// pattern: Functional Core
package conflict

import "github.com/pweiskircher/jira-bridge/internal/contracts"

// Direction is the resolved flow for one matched issue pair.
type Direction string

const (
	DirectionSourceToTarget Direction = "S2T"
	DirectionTargetToSource Direction = "T2S"
	DirectionNone           Direction = "NONE"
)

// Outcome explains how a direction was resolved.
type Outcome string

const (
	// OutcomeSourceNewer and OutcomeTargetNewer name the winning side.
	OutcomeSourceNewer Outcome = "source_newer"
	OutcomeTargetNewer Outcome = "target_newer"

	// OutcomeAlreadySynced means neither side changed since the last
	// recorded sync.
	OutcomeAlreadySynced Outcome = "already_synced"

	// OutcomeTie means both sides report the same update instant; neither
	// wins and fields stay untouched.
	OutcomeTie Outcome = "tie"
)

// Resolution is the deterministic conflict decision for one issue pair.
type Resolution struct {
	Direction Direction
	Outcome   Outcome
}

// Resolve decides which way fields flow for a matched pair. The updated
// timestamps are the sole ordering signal: the strictly newer side wins.
// When a last-sync marker is present and neither side is newer than it,
// the pair is already in sync and nothing flows.
func Resolve(sourceUpdated string, targetUpdated string, lastSync string) Resolution {
	if lastSync != "" &&
		contracts.CompareJiraTimestamps(sourceUpdated, lastSync) <= 0 &&
		contracts.CompareJiraTimestamps(targetUpdated, lastSync) <= 0 {
		return Resolution{Direction: DirectionNone, Outcome: OutcomeAlreadySynced}
	}

	switch contracts.CompareJiraTimestamps(sourceUpdated, targetUpdated) {
	case 1:
		return Resolution{Direction: DirectionSourceToTarget, Outcome: OutcomeSourceNewer}
	case -1:
		return Resolution{Direction: DirectionTargetToSource, Outcome: OutcomeTargetNewer}
	default:
		return Resolution{Direction: DirectionNone, Outcome: OutcomeTie}
	}
}

// RuleDirection maps a resolved flow onto the rule constraint vocabulary.
func (d Direction) RuleDirection() (contracts.SyncDirection, bool) {
	switch d {
	case DirectionSourceToTarget:
		return contracts.SyncDirectionSourceToTarget, true
	case DirectionTargetToSource:
		return contracts.SyncDirectionTargetToSource, true
	default:
		return "", false
	}
}
