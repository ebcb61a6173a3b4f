package notify

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Template names.
const (
	TemplateWelcome = "welcome"
	TemplateReceipt = "payment_receipt"
)

// WelcomeTemplate greets a newly registered account.
func WelcomeTemplate(name, accountType string) Template {
	name = displayName(name)
	text := fmt.Sprintf("Hi %s,\n\nYour Recycle-IT %s account is ready. You can now schedule e-waste pickups and track them from your dashboard.\n\nThe Recycle-IT team", name, accountType)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your Recycle-IT %s account is ready. You can now schedule e-waste pickups and track them from your dashboard.</p><p>The Recycle-IT team</p>",
		html.EscapeString(name), html.EscapeString(accountType))
	return Template{Name: TemplateWelcome, Subject: "Welcome to Recycle-IT", Text: text, HTML: body}
}

// Receipt carries the fields printed on a payment receipt.
type Receipt struct {
	Name        string
	OrderID     string
	PaymentID   string
	Receipt     string
	Amount      int64
	Currency    string
	ServiceType string
	PaidAt      time.Time
}

// ReceiptTemplate renders the confirmation for a captured payment.
func ReceiptTemplate(r Receipt) Template {
	name := displayName(r.Name)
	amount := FormatAmount(r.Amount, r.Currency)
	paid := r.PaidAt.UTC().Format("02 Jan 2006 15:04 MST")
	service := r.ServiceType
	if service == "" {
		service = "pickup"
	}
	lines := []string{
		fmt.Sprintf("Hi %s,", name),
		"",
		fmt.Sprintf("We received your payment of %s.", amount),
		"",
		"Order: " + r.OrderID,
		"Payment: " + r.PaymentID,
		"Receipt: " + r.Receipt,
		"Service: " + service,
		"Paid at: " + paid,
		"",
		"Thank you for recycling responsibly.",
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p><p>We received your payment of <strong>%s</strong>.</p><table>", html.EscapeString(name), html.EscapeString(amount))
	for _, row := range [][2]string{{"Order", r.OrderID}, {"Payment", r.PaymentID}, {"Receipt", r.Receipt}, {"Service", service}, {"Paid at", paid}} {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>", row[0], html.EscapeString(row[1]))
	}
	b.WriteString("</table><p>Thank you for recycling responsibly.</p>")
	return Template{
		Name:    TemplateReceipt,
		Subject: "Payment receipt " + r.Receipt,
		Text:    strings.Join(lines, "\n"),
		HTML:    b.String(),
	}
}

// FormatAmount prints a minor-unit amount in major units.
func FormatAmount(minor int64, currency string) string {
	symbol := strings.ToUpper(currency) + " "
	switch symbol {
	case "INR ":
		symbol = "₹"
	case "USD ":
		symbol = "$"
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, minor/100, minor%100)
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "there"
	}
	return name
}
