package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"

	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// actionSet is the set of monitor actions a chat wants to hear about.
type actionSet uint8

const (
	wantBuy actionSet = 1 << iota
	wantSell
	wantHold

	tradeActions = wantBuy | wantSell
	allActions   = wantBuy | wantSell | wantHold
)

func (s actionSet) has(a domain.MonitorAction) bool {
	switch a {
	case domain.ActionBuy:
		return s&wantBuy != 0
	case domain.ActionSell:
		return s&wantSell != 0
	case domain.ActionHold:
		return s&wantHold != 0
	}
	return false
}

func (s actionSet) String() string {
	var names []string
	for _, a := range []domain.MonitorAction{domain.ActionBuy, domain.ActionSell, domain.ActionHold} {
		if s.has(a) {
			names = append(names, string(a))
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// AlertDispatcher sends monitor action changes to the chats that asked for
// that action.
type AlertDispatcher struct {
	sender messageSender

	mu    sync.RWMutex
	chats map[int64]actionSet
}

func NewAlertDispatcher(sender messageSender) *AlertDispatcher {
	return &AlertDispatcher{
		sender: sender,
		chats:  make(map[int64]actionSet),
	}
}

// Subscribe sets the actions a chat receives. It reports whether anything
// changed.
func (d *AlertDispatcher) Subscribe(chatID int64, want actionSet) bool {
	if want == 0 {
		want = tradeActions
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chats[chatID] == want {
		return false
	}
	d.chats[chatID] = want
	return true
}

func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.chats[chatID]; !ok {
		return false
	}
	delete(d.chats, chatID)
	return true
}

// Subscription returns the actions a chat receives and whether it is subscribed.
func (d *AlertDispatcher) Subscription(chatID int64) (actionSet, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	want, ok := d.chats[chatID]
	return want, ok
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.chats)
}

// NotifyAction sends the result to every chat subscribed to its action. A
// failing chat does not stop the others; cancellation does.
func (d *AlertDispatcher) NotifyAction(ctx context.Context, result domain.MonitorResult) error {
	if d == nil || d.sender == nil {
		return nil
	}

	recipients := d.recipients(result.Action)
	if len(recipients) == 0 {
		return nil
	}

	msg := formatAlertMessage(result)
	var errs []error
	for _, chatID := range recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := d.sender.Send(&tele.Chat{ID: chatID}, msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *AlertDispatcher) recipients(action domain.MonitorAction) []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]int64, 0, len(d.chats))
	for chatID, want := range d.chats {
		if want.has(action) {
			out = append(out, chatID)
		}
	}
	slices.Sort(out)
	return out
}

const (
	alertStatus = "status"
	alertOn     = "on"
	alertOff    = "off"
)

// parseAlertCommand reads "/alerts [on [buy|sell|all] | off | status]".
// Plain "on" subscribes to buy and sell.
func parseAlertCommand(args []string) (string, actionSet, error) {
	if len(args) == 0 {
		return alertStatus, 0, nil
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case alertStatus:
		return alertStatus, 0, nil
	case alertOff:
		return alertOff, 0, nil
	case alertOn:
	default:
		return "", 0, fmt.Errorf("invalid mode %q", args[0])
	}

	if len(args) == 1 {
		return alertOn, tradeActions, nil
	}
	var want actionSet
	for _, arg := range args[1:] {
		switch strings.ToLower(strings.TrimSpace(arg)) {
		case "buy":
			want |= wantBuy
		case "sell":
			want |= wantSell
		case "hold":
			want |= wantHold
		case "all":
			want |= allActions
		default:
			return "", 0, fmt.Errorf("invalid action %q", arg)
		}
	}
	return alertOn, want, nil
}

func formatAlertMessage(r domain.MonitorResult) string {
	price := series.Format(r.USDTPrice, series.DisplayPlaces)
	var headline string
	switch r.Action {
	case domain.ActionBuy:
		headline = fmt.Sprintf("BUY: USDT %s is under the buy price %s", price, series.Format(r.BuyPrice, series.DisplayPlaces))
	case domain.ActionSell:
		headline = fmt.Sprintf("SELL: USDT %s is over the sell price %s", price, series.Format(r.SellPrice, series.DisplayPlaces))
	default:
		headline = fmt.Sprintf("HOLD: USDT %s is back inside the strategy band", price)
	}
	return headline + "\n\n" + formatMonitor(r)
}
