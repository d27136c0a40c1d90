package utils

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
)

// Mailer envoie les e-mails transactionnels via SMTP
type Mailer struct {
	cfg config.SMTPSettings
	log *zap.Logger
}

func NewMailer(cfg config.SMTPSettings, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{cfg: cfg, log: log}
}

// Enabled est faux quand SMTP_HOST n'est pas configuré
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// PaymentConfirmed envoie la confirmation de paiement à l'acheteur
func (m *Mailer) PaymentConfirmed(ctx context.Context, to string, order models.OrderDetail) error {
	if !m.Enabled() {
		m.log.Debug("SMTP non configuré, e-mail ignoré", zap.Int64("order_id", order.ID))
		return nil
	}

	body, err := RenderPaymentConfirmation(order)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("expéditeur invalide: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("destinataire invalide: %w", err)
	}
	msg.Subject(fmt.Sprintf("Payment received for order #%d", order.ID))
	msg.SetBodyString(mail.TypeTextHTML, body)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("client smtp: %w", err)
	}

	m.log.Info("📤 Envoi de l'e-mail", zap.String("to", to), zap.Int64("order_id", order.ID))
	return client.DialAndSendWithContext(ctx, msg)
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Payment confirmation</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Payment received for order #{{.ID}}</h2>
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left;">Product</th>
					<th style="padding: 10px; text-align: left;">Quantity</th>
					<th style="padding: 10px; text-align: left;">Unit price</th>
					<th style="padding: 10px; text-align: left;">Total</th>
				</tr>
			</thead>
			<tbody>{{range .Items}}
				<tr>
					<td style="padding: 10px;">#{{.ProductID}}</td>
					<td style="padding: 10px;">{{.Quantity}}</td>
					<td style="padding: 10px;">{{.Price.StringFixed 2}}</td>
					<td style="padding: 10px;">{{(.LineTotal).StringFixed 2}}</td>
				</tr>{{end}}
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
					<td style="padding: 10px; font-weight: bold;">{{.OrderTotal.StringFixed 2}}</td>
				</tr>
			</tfoot>
		</table>
	</div>
</body>
</html>`))

// RenderPaymentConfirmation génère le HTML de confirmation
func RenderPaymentConfirmation(order models.OrderDetail) (string, error) {
	var sb strings.Builder
	if err := confirmationTemplate.Execute(&sb, order); err != nil {
		return "", fmt.Errorf("rendu e-mail: %w", err)
	}
	return sb.String(), nil
}
