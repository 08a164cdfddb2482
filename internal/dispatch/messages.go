package dispatch

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
)

// Callback data prefixes are part of the deployed Telegram message contract;
// older messages keep working across releases only if these stay stable.
const (
	acceptCallbackPrefix    = "order_accept_"
	deliveredCallbackPrefix = "order_delivered_"
)

// CallbackAction classifies an inbound button press.
type CallbackAction string

const (
	CallbackActionAccept    CallbackAction = "accept"
	CallbackActionDelivered CallbackAction = "delivered"
)

// AcceptCallbackData returns the inline button payload for claiming an order.
func AcceptCallbackData(orderID uuid.UUID) string {
	return acceptCallbackPrefix + orderID.String()
}

// DeliveredCallbackData returns the inline button payload for confirming delivery.
func DeliveredCallbackData(orderID uuid.UUID) string {
	return deliveredCallbackPrefix + orderID.String()
}

// ParseCallbackData decodes a button payload back into its action and order id.
func ParseCallbackData(data string) (CallbackAction, uuid.UUID, bool) {
	var action CallbackAction
	var raw string
	switch {
	case strings.HasPrefix(data, acceptCallbackPrefix):
		action = CallbackActionAccept
		raw = strings.TrimPrefix(data, acceptCallbackPrefix)
	case strings.HasPrefix(data, deliveredCallbackPrefix):
		action = CallbackActionDelivered
		raw = strings.TrimPrefix(data, deliveredCallbackPrefix)
	default:
		return "", uuid.Nil, false
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, false
	}
	return action, orderID, true
}

func renderItems(items []models.OrderItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s x %d", item.Name, item.Qty))
	}
	return strings.Join(lines, "\n")
}

func kitchenMessage(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 New order #%d\n\n", order.OrderNumber)
	fmt.Fprintf(&b, "Customer: %s\n", order.CustomerName)
	fmt.Fprintf(&b, "Phone: %s\n", order.CustomerPhone)
	fmt.Fprintf(&b, "Address: %s\n\n", order.DeliveryAddress)
	fmt.Fprintf(&b, "Items:\n%s\n", renderItems(order.Items))
	if order.Notes != nil && *order.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", *order.Notes)
	}
	fmt.Fprintf(&b, "\nTotal: %s", order.TotalAmount.StringFixed(2))
	return b.String()
}

// deliveryMessage carries the same content as the kitchen variant; the accept
// control is attached by the caller.
func deliveryMessage(order *models.Order) string {
	return kitchenMessage(order)
}

func observerMessage(order *models.Order) string {
	return fmt.Sprintf("Order #%d — %s, %s, %d items, total %s",
		order.OrderNumber,
		order.CustomerName,
		order.DeliveryAddress,
		len(order.Items),
		order.TotalAmount.StringFixed(2),
	)
}

func acceptConfirmation(order *models.Order) string {
	return fmt.Sprintf("✅ Order #%d is yours. Tap below once it is delivered.", order.OrderNumber)
}

func courierReminder(order *models.Order) string {
	return fmt.Sprintf("⏰ Reminder: order #%d is still out for delivery.", order.OrderNumber)
}

func deliveredConfirmation(order *models.Order) string {
	return fmt.Sprintf("🎉 Order #%d marked as delivered. Thank you!", order.OrderNumber)
}

const (
	replyAlreadyTaken     = "This order was already taken by another courier."
	replyNotDeliverable   = "Order not found or already delivered."
	replyAcceptedShort    = "Order accepted"
	replyDeliveredShort   = "Delivery confirmed"
	buttonAcceptLabel     = "🚴 Accept delivery"
	buttonDeliveredLabel  = "📦 Mark delivered"
	reminderHeaderPending = "⏰ Reminder: order still waiting for a courier\n\n"
)
