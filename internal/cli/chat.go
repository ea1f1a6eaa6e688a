package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

var (
	chatCustomerID string
	chatPage       string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long: `Start an interactive conversation. Type "quit" to leave, "cart" to list
the cart, or "add <product_id> [qty]" to put a product in it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		b, err := openBackends(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		orch, err := buildOrchestrator(ctx, b)
		if err != nil {
			return err
		}
		return (&chatSession{orch: orch, customerID: chatCustomerID, page: chatPage, b: b}).run(ctx)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatCustomerID, "customer", "", "shopper id, empty for a guest")
	chatCmd.Flags().StringVar(&chatPage, "page", "", "page the shopper is on")
}

type chatSession struct {
	orch       *orchestrator.Orchestrator
	b          *backends
	customerID string
	page       string

	conversationID string
	cart           []contractx.CartItem
}

func (s *chatSession) run(ctx context.Context) error {
	p := &promptui.Prompt{Label: ">"}
	for {
		line, err := p.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		fields := strings.Fields(line)
		switch {
		case line == "":
			continue
		case line == "quit" || line == "q":
			return nil
		case line == "cart":
			s.printCart()
			continue
		case fields[0] == "add" && len(fields) >= 2:
			if err := s.addToCart(ctx, fields[1:]); err != nil {
				fmt.Println("!", err)
			}
			continue
		}

		resp, err := s.orch.Chat(ctx, contractx.ChatRequest{
			ConversationID: s.conversationID,
			CustomerID:     s.customerID,
			Message:        line,
			CartItems:      s.cart,
			PageContext:    s.page,
		})
		if err != nil {
			fmt.Println("!", err)
			continue
		}
		s.conversationID = resp.ConversationID
		s.apply(resp)

		fmt.Printf("[%s] %s\n", resp.AgentName, resp.Text)
		for _, a := range resp.ActionsTaken {
			fmt.Printf("  - %s: %s\n", a.Tool, a.Status)
		}
	}
}

func (s *chatSession) apply(resp contractx.AgentResponse) {
	for _, d := range resp.Directives {
		switch d {
		case contractx.DirectiveClearCart:
			s.cart = nil
			fmt.Println("  (cart cleared)")
		default:
			fmt.Printf("  (%s)\n", d)
		}
	}
}

func (s *chatSession) addToCart(ctx context.Context, args []string) error {
	qty := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return errors.New("quantity must be a positive number")
		}
		qty = n
	}
	p, err := s.b.commerce.Product(ctx, args[0])
	if err != nil {
		return err
	}
	s.cart = append(s.cart, contractx.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Color:     p.Color,
		UnitPrice: p.Price,
		Quantity:  qty,
	})
	fmt.Printf("  added %s x%d\n", p.Name, qty)
	return nil
}

func (s *chatSession) printCart() {
	if len(s.cart) == 0 {
		fmt.Println("  cart is empty")
		return
	}
	for _, it := range s.cart {
		fmt.Printf("  %s %s x%d @ $%.2f\n", it.ProductID, it.Name, it.Quantity, it.UnitPrice)
	}
}
