package queue

import "fmt"

// Named work queues. Every side effect of a batch transition, admin action,
// or catalog mutation flows through one of these.
const (
	QueueNotifications = "notifications"
	QueueAudit         = "audit"
	QueueSearch        = "search"
)

var workQueues = []string{
	QueueNotifications,
	QueueAudit,
	QueueSearch,
}

// WorkQueueNames returns all work queues (3 total).
func WorkQueueNames() []string {
	queues := make([]string, len(workQueues))
	copy(queues, workQueues)
	return queues
}

// DLQName returns the dead-letter queue name, e.g. dlq.audit.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// DLQNames returns all dead-letter queues (3 total).
func DLQNames() []string {
	queues := make([]string, 0, len(workQueues))
	for _, q := range workQueues {
		queues = append(queues, DLQName(q))
	}
	return queues
}

func isWorkQueue(name string) bool {
	for _, q := range workQueues {
		if q == name {
			return true
		}
	}
	return false
}
