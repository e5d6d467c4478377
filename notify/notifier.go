package notify

import (
	"context"
	"fmt"
	"log"

	"rentwatch/config"
	"rentwatch/models"
)

// DeliveryResult reports which property identities were covered by at
// least one delivered digest. Only those get marked as notified.
type DeliveryResult struct {
	NotifiedIDs []string
	DigestsSent int
}

// Notifier turns a change report into digests and fans them out to the
// configured recipients.
type Notifier struct {
	cfg    *config.NotificationConfig
	mailer Mailer
}

func NewNotifier(cfg *config.NotificationConfig, mailer Mailer) *Notifier {
	return &Notifier{cfg: cfg, mailer: mailer}
}

// Notify sends up to three digests: new listings, price drops, and a
// market update. Removed listings are reported only when at least
// MinRemovedToAlert disappeared at once; smaller churn is noise.
func (n *Notifier) Notify(ctx context.Context, report *models.ChangeReport) (*DeliveryResult, error) {
	result := &DeliveryResult{}

	if !n.cfg.Enabled || report.Empty() {
		return result, nil
	}

	var digests []*Digest

	if len(report.New) > 0 {
		d, err := RenderNewListings(report.New, n.cfg.MaxItemsPerDigest)
		if err != nil {
			return result, err
		}
		digests = append(digests, d)
	}

	if len(report.PriceDrops) > 0 {
		d, err := RenderPriceDrops(report.PriceDrops)
		if err != nil {
			return result, err
		}
		digests = append(digests, d)
	}

	removed := report.Removed
	if len(removed) < n.cfg.MinRemovedToAlert {
		if len(removed) > 0 {
			log.Printf("Suppressing removed digest: %d below threshold %d",
				len(removed), n.cfg.MinRemovedToAlert)
		}
		removed = nil
	}
	if len(removed) > 0 || len(report.PriceRises) > 0 {
		d, err := RenderMarketUpdate(removed, report.PriceRises)
		if err != nil {
			return result, err
		}
		digests = append(digests, d)
	}

	var firstErr error
	for _, d := range digests {
		delivered := n.deliver(ctx, d)
		if delivered == 0 {
			if firstErr == nil {
				firstErr = fmt.Errorf("digest %q reached no recipients", d.Subject)
			}
			continue
		}
		result.DigestsSent++
		result.NotifiedIDs = append(result.NotifiedIDs, d.PropertyIDs...)
	}

	if result.DigestsSent == 0 && firstErr != nil {
		return result, firstErr
	}
	return result, nil
}

// deliver sends one digest to every recipient, isolating failures so a
// bad mailbox never blocks the rest.
func (n *Notifier) deliver(ctx context.Context, d *Digest) int {
	delivered := 0
	for _, rcpt := range n.cfg.Recipients {
		if err := n.mailer.Send(ctx, rcpt, d); err != nil {
			log.Printf("Failed to send %q to %s: %v", d.Subject, rcpt, err)
			continue
		}
		delivered++
	}
	return delivered
}
