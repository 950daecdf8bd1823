package notify

import (
	"fmt"
	"strings"

	"grocer/internal/model"

	"github.com/google/uuid"
)

// ProductNames resolves product ids to display names; missing ids print as the id.
type ProductNames map[uuid.UUID]string

// Name returns the display name for id.
func (n ProductNames) Name(id uuid.UUID) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return id.String()
}

// CourierAssigned tells a courier which order to deliver and where.
func CourierAssigned(courier *model.User, order *model.Order, names ProductNames) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\nSe te asignó el pedido %s para entrega a domicilio.\n\n", courier.Name, order.ID)
	if order.Address != nil {
		fmt.Fprintf(&b, "Dirección: %s\n", *order.Address)
	}
	if order.References != nil && *order.References != "" {
		fmt.Fprintf(&b, "Referencias: %s\n", *order.References)
	}
	if order.Phone != "" {
		fmt.Fprintf(&b, "Teléfono: %s\n", order.Phone)
	}
	fmt.Fprintf(&b, "Pago: %s\nTotal: $%s\n\nProductos:\n", order.PaymentMethod, order.Total.StringFixed(2))
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x%d\n", names.Name(item.ProductID), item.Quantity)
	}

	return Message{
		To:      courier.Email,
		Subject: fmt.Sprintf("Nuevo pedido asignado %s", shortID(order.ID)),
		Body:    b.String(),
	}
}

// RestockRequested asks a supplier to quote a restock order.
func RestockRequested(supplier *model.User, order *model.SupplierOrder, names ProductNames) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\nTenemos una nueva solicitud de reabastecimiento (%s).\nMétodo de pago: %s\n\nProductos solicitados:\n",
		supplier.Name, order.ID, order.PaymentMethod)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x%d\n", names.Name(item.ProductID), item.RequestedQuantity)
	}
	b.WriteString("\nPor favor envía tu cotización desde el portal de proveedores.\n")

	return Message{
		To:      supplier.Email,
		Subject: fmt.Sprintf("Solicitud de reabastecimiento %s", shortID(order.ID)),
		Body:    b.String(),
	}
}

// QuoteSubmitted tells an admin a supplier quotation awaits review.
func QuoteSubmitted(admin *model.User, order *model.SupplierOrder, names ProductNames) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\nEl proveedor cotizó la orden %s y espera tu revisión.\n\n", admin.Name, order.ID)
	for _, item := range order.Items {
		price := "sin precio"
		if item.UnitPrice != nil {
			price = "$" + item.UnitPrice.StringFixed(2)
		}
		fmt.Fprintf(&b, "- %s x%d a %s\n", names.Name(item.ProductID), item.RequestedQuantity, price)
	}

	return Message{
		To:      admin.Email,
		Subject: fmt.Sprintf("Cotización pendiente de revisión %s", shortID(order.ID)),
		Body:    b.String(),
	}
}

// RestockPaid tells a supplier their order has been paid.
func RestockPaid(supplier *model.User, order *model.SupplierOrder) Message {
	return Message{
		To:      supplier.Email,
		Subject: fmt.Sprintf("Pago registrado %s", shortID(order.ID)),
		Body: fmt.Sprintf("Hola %s,\n\nRegistramos el pago (%s) de la orden %s. El inventario ya fue actualizado.\n",
			supplier.Name, order.PaymentMethod, order.ID),
	}
}

// QuoteReviewed tells a supplier whether their quotation was accepted.
func QuoteReviewed(supplier *model.User, order *model.SupplierOrder) Message {
	outcome := "aceptada"
	if order.PaymentState == model.SupplierPaymentRejected {
		outcome = "rechazada"
	}
	return Message{
		To:      supplier.Email,
		Subject: fmt.Sprintf("Cotización %s %s", outcome, shortID(order.ID)),
		Body:    fmt.Sprintf("Hola %s,\n\nTu cotización para la orden %s fue %s.\n", supplier.Name, order.ID, outcome),
	}
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}
