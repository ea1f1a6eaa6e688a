package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Retail-Assistant/agent/state"
)

const summaryTurnChars = 200

// Summary is the compact context the router sees: cart size, whether the
// customer is known, the last agent, the page and the two turns before the
// current message.
func Summary(c *statex.Context) string {
	if c == nil {
		return ""
	}
	customer := "guest"
	if c.CustomerID != "" {
		customer = "known"
	}
	lastAgent := c.LastAgent
	if lastAgent == "" {
		lastAgent = "none"
	}
	page := c.PageContext
	if page == "" {
		page = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cart_items: %d\ncustomer: %s\nlast_agent: %s\npage_context: %s", len(c.Cart), customer, lastAgent, page)

	// The newest window entry is the message being classified.
	prior := c.Window
	if n := len(prior); n > 0 && prior[n-1].Role == statex.TurnCustomer {
		prior = prior[:n-1]
	}
	if len(prior) > 2 {
		prior = prior[len(prior)-2:]
	}
	for _, t := range prior {
		speaker := string(t.Role)
		if t.Role == statex.TurnAgent {
			speaker = "agent(" + t.Agent + ")"
		}
		fmt.Fprintf(&b, "\n%s: %s", speaker, clip(t.Text, summaryTurnChars))
	}
	return b.String()
}

// CartSummary renders the cart snapshot for persona prompts.
func CartSummary(cart []contractx.CartItem) string {
	if len(cart) == 0 {
		return ""
	}
	var (
		names    []string
		subtotal float64
		units    int
	)
	for _, item := range cart {
		qty := max(item.Quantity, 1)
		units += qty
		subtotal += item.UnitPrice * float64(qty)
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		names = append(names, fmt.Sprintf("%s x%d", name, qty))
	}
	return fmt.Sprintf("%d items (%s), subtotal $%.2f", units, strings.Join(names, ", "), subtotal)
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func windowMessages(window []statex.Turn) []contractx.Message {
	msgs := make([]contractx.Message, 0, len(window))
	for _, t := range window {
		role := contractx.RoleUser
		if t.Role == statex.TurnAgent {
			role = contractx.RoleAssistant
		}
		msgs = append(msgs, contractx.Message{Role: role, Content: t.Text})
	}
	return msgs
}
