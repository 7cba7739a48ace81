package enums

// OutboxDLQErrorReason says why the publisher stopped retrying an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts marks rows whose publish kept failing.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable marks rows that can never be published as
	// stored, such as unknown event types or undecodable payloads.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return isOneOf(r, dlqReasons) }

// ParseOutboxDLQErrorReason validates raw query input.
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parseOneOf("dead letter reason", value, dlqReasons)
}
