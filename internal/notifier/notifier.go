// Package notifier sends rendered capsule notifications to a single
// recipient. Implementations make exactly one delivery attempt per call;
// retry policy belongs to the next scheduler run.
package notifier

import "context"

type Email struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body"`
}

type Notifier interface {
	Send(ctx context.Context, msg Email) error
}
