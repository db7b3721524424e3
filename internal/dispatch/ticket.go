package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

const ticketTimeLayout = "2006-01-02 15:04"

// Ticket describes units just added to a sale that need preparing.
// Quantity is the added amount, never the line's new total.
type Ticket struct {
	SaleID      int64
	TableNumber *int32
	TabName     *string
	ProductID   int64
	ItemName    string
	Quantity    int32
	Note        *string
	// Order is the sale as the mutation committed it. Messaging sectors
	// render their summary from it; when nil, Dispatch reads the sale.
	Order *OrderSnapshot
}

// OrderSnapshot is a sale with its lines at one point in time.
type OrderSnapshot struct {
	Sale  database.Sale
	Items []database.SaleItem
}

// OrderRef is how staff name an order: "Table 12" or "Tab Ana".
func OrderRef(saleID int64, tableNumber *int32, tabName *string) string {
	switch {
	case tableNumber != nil:
		return fmt.Sprintf("Table %d", *tableNumber)
	case tabName != nil && strings.TrimSpace(*tabName) != "":
		return "Tab " + strings.TrimSpace(*tabName)
	default:
		return fmt.Sprintf("Order #%d", saleID)
	}
}

// RenderFragment builds the printer ticket for one sector.
func RenderFragment(sectorName string, t Ticket, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", strings.ToUpper(sectorName))
	fmt.Fprintf(&b, "%s\n", OrderRef(t.SaleID, t.TableNumber, t.TabName))
	fmt.Fprintf(&b, "%dx %s\n", t.Quantity, t.ItemName)
	if t.Note != nil && strings.TrimSpace(*t.Note) != "" {
		fmt.Fprintf(&b, "Note: %s\n", strings.TrimSpace(*t.Note))
	}
	fmt.Fprintf(&b, "%s\n", at.Format(ticketTimeLayout))
	return b.String()
}

// RenderSummary builds the full-order message sent to messaging sectors.
func RenderSummary(sectorName string, sale database.Sale, items []database.SaleItem, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* - %s (#%d)\n", sectorName, OrderRef(sale.ID, sale.TableNumber, sale.TabName), sale.ID)

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal)
		fmt.Fprintf(&b, "%dx %s @ %s = %s\n", it.Quantity, it.ProductName, it.UnitPrice.StringFixed(2), it.Subtotal.StringFixed(2))
		if it.Notes != nil && strings.TrimSpace(*it.Notes) != "" {
			fmt.Fprintf(&b, "   - %s\n", strings.TrimSpace(*it.Notes))
		}
	}
	if sale.Discount.IsPositive() {
		fmt.Fprintf(&b, "Discount: %s\n", sale.Discount.StringFixed(2))
	}
	total := subtotal.Sub(sale.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	fmt.Fprintf(&b, "Total: %s\n", total.StringFixed(2))
	if sale.Notes != nil && strings.TrimSpace(*sale.Notes) != "" {
		fmt.Fprintf(&b, "Order note: %s\n", strings.TrimSpace(*sale.Notes))
	}
	fmt.Fprintf(&b, "%s\n", at.Format(ticketTimeLayout))
	return b.String()
}
