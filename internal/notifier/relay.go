package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RelayNotifier posts the message to an HTTP mail relay. A MicroBreaker
// sheds sends while the relay is failing; a rejected send surfaces as an
// ordinary error and the capsule follows the normal failure path.
type RelayNotifier struct {
	url    string
	client *http.Client
	br     *MicroBreaker
}

func NewRelayNotifier(url string, timeoutMs, failThreshold, openForMs int) *RelayNotifier {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	if failThreshold <= 0 {
		failThreshold = 3
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	return &RelayNotifier{
		url:    url,
		client: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:     NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

var _ Notifier = (*RelayNotifier)(nil)

func (n *RelayNotifier) Send(ctx context.Context, msg Email) error {
	if !n.br.TryAcquire() {
		return fmt.Errorf("relay %s unavailable (breaker open)", n.url)
	}

	if err := n.post(ctx, msg); err != nil {
		n.br.OnFailure()
		return err
	}

	n.br.OnSuccess()

	return nil
}

func (n *RelayNotifier) post(ctx context.Context, msg Email) error {
	b, _ := json.Marshal(msg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("relay %s status=%d", n.url, res.StatusCode)
	}

	return nil
}
