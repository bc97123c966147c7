package alert

import (
	"context"
	"fmt"

	"github.com/orchestrace/control-plane/log"
)

// LogAction appends the alert to the structured log. orchestrator.New
// registers it under the "log" action name.
func LogAction(ctx context.Context, a *Alert) error {
	log.WarningLog.Printf("alert %s fired: %s=%v threshold=%v severity=%s", a.ID, a.Metric, a.Value, a.Threshold, a.Level)
	return nil
}

// Notifier is the narrow interface an email/webhook action needs to deliver
// an alert: one Send method per channel, registered independently of the
// Engine so tests can swap in a fake.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// EmailAction builds an ActionFunc that delivers through an email Notifier.
func EmailAction(n Notifier) ActionFunc {
	return func(ctx context.Context, a *Alert) error {
		subject := fmt.Sprintf("[%s] %s", a.Level, a.Metric)
		body := fmt.Sprintf("%s crossed threshold %v with value %v at %s", a.Metric, a.Threshold, a.Value, a.Timestamp.Format("15:04:05"))
		return n.Send(ctx, subject, body)
	}
}

// WebhookAction builds an ActionFunc that posts through a webhook Notifier.
func WebhookAction(n Notifier) ActionFunc {
	return func(ctx context.Context, a *Alert) error {
		return n.Send(ctx, "alert", fmt.Sprintf("%+v", a))
	}
}

// Scaler is implemented by whatever owns agent pool sizing; AutoScaleAction
// wraps it so the queue/agent packages can register a live scaler without
// alert importing either.
type Scaler interface {
	ScaleUp(ctx context.Context, reason string) error
}

func AutoScaleAction(s Scaler) ActionFunc {
	return func(ctx context.Context, a *Alert) error {
		return s.ScaleUp(ctx, fmt.Sprintf("alert %s on %s", a.ID, a.Metric))
	}
}

// Restarter is implemented by whatever owns agent lifecycle; RestartAction
// wraps it the same way AutoScaleAction wraps Scaler.
type Restarter interface {
	Restart(ctx context.Context, reason string) error
}

func RestartAction(r Restarter) ActionFunc {
	return func(ctx context.Context, a *Alert) error {
		return r.Restart(ctx, fmt.Sprintf("alert %s on %s", a.ID, a.Metric))
	}
}
