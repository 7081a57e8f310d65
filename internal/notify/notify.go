// Package notify defines the outcome notification sink consumed by batch
// operations. The UI layer supplies its own implementation; the server falls
// back to logging.
package notify

import "log"

type Kind string

const (
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notifier receives user-facing outcome summaries. Messages carry counts,
// never raw errors or stack traces.
type Notifier interface {
	Notify(kind Kind, message, description string)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(kind Kind, message, description string) {
	if description == "" {
		log.Printf("notify: [%s] %s", kind, message)
		return
	}
	log.Printf("notify: [%s] %s - %s", kind, message, description)
}

// Discard drops all notifications.
type Discard struct{}

func (Discard) Notify(Kind, string, string) {}
