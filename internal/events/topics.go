package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated      = "order.created"
	TopicOrderSubmitFailed = "order.submit_failed"
	TopicScopeChanged      = "scope.changed"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderSubmitFailed,
		TopicScopeChanged,
	}
}
