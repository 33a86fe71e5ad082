package utils

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"cedra_storefront/internal/config"
	"cedra_storefront/internal/orders"

	"github.com/wneessen/go-mail"
)

// Mailer envoie l'e-mail de confirmation après l'enregistrement d'une commande.
// Sans SMTP_HOST, les envois sont seulement journalisés.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	send     func(msg *mail.Msg) error
}

func NewMailer(cfg *config.Config) *Mailer {
	m := &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
	}
	m.send = m.dialAndSend
	return m
}

func (m *Mailer) Enabled() bool {
	return m.host != ""
}

// OrderConfirmed part en arrière-plan : un échec d'envoi ne remet jamais en cause la commande.
func (m *Mailer) OrderConfirmed(_ context.Context, order orders.Order) {
	to := order.ContactEmail()
	if to == "" {
		log.Printf("⚠️ Commande %s sans e-mail de contact, confirmation non envoyée", order.OrderNumber)
		return
	}
	if !m.Enabled() {
		log.Printf("ℹ️ SMTP non configuré, confirmation de %s non envoyée à %s", order.OrderNumber, to)
		return
	}

	go func() {
		if err := m.SendConfirmationEmail(to, order); err != nil {
			log.Printf("❌ Envoi de la confirmation %s à %s: %v", order.OrderNumber, to, err)
		}
	}()
}

func (m *Mailer) SendConfirmationEmail(to string, order orders.Order) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject("Confirmation de votre commande " + order.OrderNumber)
	msg.SetBodyString(mail.TypeTextHTML, GenerateOrderConfirmationHTML(order))

	log.Println("📤 Envoi de l'e-mail à", to)
	return m.send(msg)
}

func (m *Mailer) dialAndSend(msg *mail.Msg) error {
	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.username),
		mail.WithPassword(m.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}
	return client.DialAndSend(msg)
}

// FormatAmount affiche un montant en paise : 300000 → "₹3000.00".
func FormatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	symbol := currency + " "
	if currency == "INR" || currency == "" {
		symbol = "₹"
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, amount/100, amount%100)
}

// GenerateOrderConfirmationHTML génère le HTML de confirmation de commande
func GenerateOrderConfirmationHTML(order orders.Order) string {
	var rows strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&rows, `
			<tr>
				<td>%s</td>
				<td>%d</td>
				<td>%s</td>
				<td>%s</td>
			</tr>`,
			html.EscapeString(item.Name), item.Quantity,
			FormatAmount(item.UnitPrice, order.Currency), FormatAmount(item.Subtotal(), order.Currency))
	}

	addr := order.ShippingAddress
	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<title>Confirmation de commande</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Commande %s confirmée</h2>
		<p>Bonjour %s,</p>
		<p>Votre paiement (référence %s) a bien été reçu.</p>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th>Produit</th>
					<th>Quantité</th>
					<th>Prix unitaire</th>
					<th>Total</th>
				</tr>
			</thead>
			<tbody>%s
			</tbody>
			<tfoot>
				<tr><td colspan="3" style="text-align: right;">Livraison:</td><td>%s</td></tr>
				<tr><td colspan="3" style="text-align: right; font-weight: bold;">Total:</td><td style="font-weight: bold;">%s</td></tr>
			</tfoot>
		</table>
		<p>Livraison à : %s, %s, %s %s</p>
		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe Cedra</strong>
		</p>
	</div>
</body>
</html>`,
		html.EscapeString(order.OrderNumber),
		html.EscapeString(addr.FullName),
		html.EscapeString(order.PaymentReference),
		rows.String(),
		FormatAmount(order.ShippingCost, order.Currency),
		FormatAmount(order.Total, order.Currency),
		html.EscapeString(addr.AddressLine), html.EscapeString(addr.City),
		html.EscapeString(addr.State), html.EscapeString(addr.Pincode),
	)
}
