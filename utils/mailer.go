package utils

import "log"

// Mailer hands off outbound mail. Actual delivery lives outside this
// service; LogMailer is the default and simply records the handoff.
type Mailer interface {
	SendPasswordReset(email, token string) error
}

type LogMailer struct{}

func (LogMailer) SendPasswordReset(email, token string) error {
	log.Printf("[mail] password reset requested for %s (token %s)", email, token)
	return nil
}
