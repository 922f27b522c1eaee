package contracts

// ReasonCode is a stable machine-readable code attached to per-issue results.
type ReasonCode string

const (
	ReasonCodeAuthFailed               ReasonCode = "auth_failed"
	ReasonCodeTransportError           ReasonCode = "transport_error"
	ReasonCodeValidationFailed         ReasonCode = "validation_failed"
	ReasonCodeCreateFailed             ReasonCode = "create_failed"
	ReasonCodeUpdateFailed             ReasonCode = "update_failed"
	ReasonCodeMetadataFieldRejected    ReasonCode = "metadata_field_rejected"
	ReasonCodeAttachmentTransferFailed ReasonCode = "attachment_transfer_failed"
	ReasonCodeAlreadySynced            ReasonCode = "already_synced"
	ReasonCodeTimestampTie             ReasonCode = "timestamp_tie"
	ReasonCodeNoFieldsResolved         ReasonCode = "no_fields_resolved"
	ReasonCodeCrossReferenceMissing    ReasonCode = "cross_reference_missing"
	ReasonCodeFieldUnknown             ReasonCode = "field_unknown"
	ReasonCodeLockAcquireFailed        ReasonCode = "lock_acquire_failed"
	ReasonCodeLockStaleRecovered       ReasonCode = "lock_stale_recovered"
	ReasonCodeDryRunNoWrite            ReasonCode = "dry_run_no_write"
	ReasonCodeTickSkipped              ReasonCode = "tick_skipped"
)

// StableReasonCodes freezes the contract taxonomy and ordering.
var StableReasonCodes = []ReasonCode{
	ReasonCodeAuthFailed,
	ReasonCodeTransportError,
	ReasonCodeValidationFailed,
	ReasonCodeCreateFailed,
	ReasonCodeUpdateFailed,
	ReasonCodeMetadataFieldRejected,
	ReasonCodeAttachmentTransferFailed,
	ReasonCodeAlreadySynced,
	ReasonCodeTimestampTie,
	ReasonCodeNoFieldsResolved,
	ReasonCodeCrossReferenceMissing,
	ReasonCodeFieldUnknown,
	ReasonCodeLockAcquireFailed,
	ReasonCodeLockStaleRecovered,
	ReasonCodeDryRunNoWrite,
	ReasonCodeTickSkipped,
}

func IsStableReasonCode(code ReasonCode) bool {
	for _, stable := range StableReasonCodes {
		if stable == code {
			return true
		}
	}
	return false
}
