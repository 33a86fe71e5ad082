package utils

import (
	"context"
	"fmt"
	"html"
	"log"

	"cedra_storefront/internal/orders"

	"github.com/wneessen/go-mail"
)

// OrderStatusChanged prévient le client d'une transition faite par le back-office.
func (m *Mailer) OrderStatusChanged(_ context.Context, order orders.Order) {
	to := order.ContactEmail()
	if to == "" || !m.Enabled() {
		return
	}

	go func() {
		if err := m.SendOrderStatusEmail(to, order); err != nil {
			log.Printf("❌ Erreur envoi email statut: %v", err)
			return
		}
		log.Printf("📧 Email de statut envoyé: %s → %s", order.Status, to)
	}()
}

// SendOrderStatusEmail envoie un email de notification de changement de statut
func (m *Mailer) SendOrderStatusEmail(to string, order orders.Order) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(statusEmailSubject(order.Status))
	msg.SetBodyString(mail.TypeTextHTML, generateStatusEmailHTML(order))
	return m.send(msg)
}

func statusEmailSubject(status orders.Status) string {
	switch status {
	case orders.StatusProcessing:
		return "🛠️ Commande en préparation - Cedra"
	case orders.StatusShipped:
		return "📦 Votre commande a été expédiée - Cedra"
	case orders.StatusDelivered:
		return "🎉 Votre commande a été livrée - Cedra"
	case orders.StatusCancelled:
		return "❌ Commande annulée - Cedra"
	case orders.StatusRefunded:
		return "💰 Remboursement effectué - Cedra"
	default:
		return "📋 Mise à jour de votre commande - Cedra"
	}
}

func statusMessage(status orders.Status) string {
	switch status {
	case orders.StatusProcessing:
		return "Nous préparons votre commande."
	case orders.StatusShipped:
		return "Bonne nouvelle ! Votre commande a été expédiée et est en route vers vous."
	case orders.StatusDelivered:
		return "Votre commande a été livrée avec succès. Nous espérons que vous en êtes satisfait !"
	case orders.StatusCancelled:
		return "Votre commande a été annulée. Si vous avez des questions, n'hésitez pas à nous contacter."
	case orders.StatusRefunded:
		return "Votre remboursement a été traité. Les fonds seront crédités sur votre compte sous 5-10 jours ouvrés."
	default:
		return "Le statut de votre commande a été mis à jour."
	}
}

func statusColor(status orders.Status) string {
	switch status {
	case orders.StatusProcessing, orders.StatusConfirmed:
		return "#10b981" // Vert
	case orders.StatusShipped:
		return "#3b82f6" // Bleu
	case orders.StatusDelivered:
		return "#8b5cf6" // Violet
	case orders.StatusCancelled:
		return "#ef4444" // Rouge
	case orders.StatusRefunded:
		return "#f59e0b" // Orange
	default:
		return "#6b7280" // Gris
	}
}

func generateStatusEmailHTML(order orders.Order) string {
	tracking := ""
	if order.TrackingNumber != "" {
		tracking = fmt.Sprintf(`<p>Numéro de suivi : <strong>%s</strong></p>`, html.EscapeString(order.TrackingNumber))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<title>Mise à jour de commande</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 12px;">
		<h2 style="color: %s;">Commande %s : %s</h2>
		<p>%s</p>
		%s
		<p>Total : %s</p>
		<p style="margin-top: 30px; color: #555;">L'équipe Cedra</p>
	</div>
</body>
</html>`,
		statusColor(order.Status),
		html.EscapeString(order.OrderNumber), order.Status,
		statusMessage(order.Status),
		tracking,
		FormatAmount(order.Total, order.Currency),
	)
}
