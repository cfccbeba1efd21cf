package notifier

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPNotifier delivers through a regular SMTP submission endpoint.
type SMTPNotifier struct {
	client *mail.Client
	from   string
}

func NewSMTPNotifier(host string, port int, username, password, from string) (*SMTPNotifier, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp notifier: empty host")
	}
	if from == "" {
		return nil, fmt.Errorf("smtp notifier: empty from address")
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp notifier: %w", err)
	}

	return &SMTPNotifier{client: client, from: from}, nil
}

var _ Notifier = (*SMTPNotifier)(nil)

func (n *SMTPNotifier) Send(ctx context.Context, msg Email) error {
	m := mail.NewMsg()
	if err := m.From(n.from); err != nil {
		return err
	}
	if err := m.To(msg.To); err != nil {
		return err
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)

	return n.client.DialAndSendWithContext(ctx, m)
}
