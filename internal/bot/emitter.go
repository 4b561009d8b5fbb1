package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/m3rciful/fundbot/internal/service"

	tele "gopkg.in/telebot.v4"
)

// minorUnitsPerMajor converts bot amounts (major currency units) into the
// provider's minor units.
const minorUnitsPerMajor = 100

// invoiceEmitter sends provider invoices through telebot and remembers the
// last invoice message per chat so it can be removed once paid.
type invoiceEmitter struct {
	bot   tele.API
	token string

	mu          sync.Mutex
	lastInvoice map[int64]int
}

func newInvoiceEmitter(bot tele.API, providerToken string) *invoiceEmitter {
	return &invoiceEmitter{
		bot:         bot,
		token:       providerToken,
		lastInvoice: make(map[int64]int),
	}
}

// SetBot attaches the transport once the bot has been built.
func (e *invoiceEmitter) SetBot(bot tele.API) {
	e.mu.Lock()
	e.bot = bot
	e.mu.Unlock()
}

// EmitInvoice implements service.InvoiceEmitter.
func (e *invoiceEmitter) EmitInvoice(ctx context.Context, chatID int64, inv service.Invoice) error {
	e.mu.Lock()
	bot := e.bot
	e.mu.Unlock()
	if bot == nil {
		return fmt.Errorf("invoice emitter: bot not attached")
	}

	invoice := &tele.Invoice{
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload,
		Currency:    inv.Currency,
		Token:       e.token,
		Prices: []tele.Price{
			{Label: "Donation", Amount: int(inv.Amount * minorUnitsPerMajor)},
		},
	}

	msg, err := bot.Send(tele.ChatID(chatID), invoice)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.lastInvoice[chatID] = msg.ID
	e.mu.Unlock()
	return nil
}

// TakeInvoiceMessage returns and forgets the chat's pending invoice message.
func (e *invoiceEmitter) TakeInvoiceMessage(chatID int64) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.lastInvoice[chatID]
	if ok {
		delete(e.lastInvoice, chatID)
	}
	return id, ok
}
