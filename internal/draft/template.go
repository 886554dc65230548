package draft

import (
	"context"
	"fmt"

	"github.com/Jpatching/ghostprotocol/internal/common"
	"github.com/Jpatching/ghostprotocol/internal/model"
)

// TemplateGenerator drafts a cancellation email locally, without any
// external API. Used as the fallback when no claude key is configured.
type TemplateGenerator struct{}

// GenerateCancellationDraft produces a deterministic draft from the intent fields
func (TemplateGenerator) GenerateCancellationDraft(_ context.Context, name, merchant string, amount float64) (model.Draft, error) {
	subject := fmt.Sprintf("Cancellation Request - %s", name)
	body := fmt.Sprintf(`Dear %s,

I am writing to request the immediate cancellation of my %s subscription, currently billed at $%s per month.

Please cancel the subscription effective immediately, stop all future charges to my payment method, and send written confirmation of the cancellation to this email address.

Per applicable consumer protection regulations, I expect this request to be processed without requiring a phone call or additional retention steps.

Thank you,
A Ghost Protocol user`, merchant, name, common.FormatUSD(amount))

	return model.Draft{Subject: subject, Body: body}, nil
}
