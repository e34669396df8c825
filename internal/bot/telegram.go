package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"kimchi-signal/internal/chart"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
	"kimchi-signal/internal/service"
	"kimchi-signal/internal/strategy"

	tele "gopkg.in/telebot.v3"
)

const (
	defaultHistoryDays = 5
	maxHistoryDays     = 30
	defaultChartDays   = 60
	maxChartDays       = 120
	maxReplyLength     = 4000
)

type SeriesReader interface {
	Series(ctx context.Context, name string, days int) (domain.TimeSeries, error)
	Thresholds(ctx context.Context, days int) (domain.ThresholdSeries, error)
}

type StrategyRunner interface {
	Latest(ctx context.Context) (domain.StrategyRecord, error)
	Analyze(ctx context.Context, force bool) (strategy.Outcome, error)
}

type MonitorChecker interface {
	Check(ctx context.Context) (domain.MonitorResult, error)
}

type ChartRenderer interface {
	RenderPremiumChart(in chart.Input) (*chart.Image, error)
}

// Services groups what the bot reads from. Nil members disable their commands.
type Services struct {
	Pipeline SeriesReader
	Strategy StrategyRunner
	Monitor  MonitorChecker
	Charts   ChartRenderer
}

func StartTelegramBot(token string, services Services) *AlertDispatcher {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b)
	cmds := &commands{services: services}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/premium", func(c tele.Context) error {
		return c.Send(cmds.premium(context.Background(), c.Args()))
	})
	b.Handle("/thresholds", func(c tele.Context) error {
		return c.Send(cmds.thresholds(context.Background(), c.Args()))
	})
	b.Handle("/strategy", func(c tele.Context) error {
		return c.Send(cmds.strategy(context.Background()))
	})
	b.Handle("/monitor", func(c tele.Context) error {
		return c.Send(cmds.monitor(context.Background()))
	})
	b.Handle("/chart", func(c tele.Context) error {
		_ = c.Notify(tele.UploadingPhoto)
		img, caption := cmds.chart(context.Background(), c.Args())
		if img == nil {
			return c.Send(caption)
		}
		return c.Send(&tele.Photo{File: tele.FromReader(bytes.NewReader(img.Bytes)), Caption: caption})
	})
	b.Handle("/analyze", func(c tele.Context) error {
		_ = c.Notify(tele.Typing)
		return c.Send(cmds.analyze(context.Background(), c.Args()))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, want, err := parseAlertCommand(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on [buy|sell|hold|all] | /alerts off | /alerts status")
		}
		return c.Send(alertReply(alerts, chat.ID, mode, want))
	})

	log.Println("Telegram bot started")
	go b.Start()
	return alerts
}

func alertReply(alerts *AlertDispatcher, chatID int64, mode string, want actionSet) string {
	switch mode {
	case alertOn:
		if alerts.Subscribe(chatID, want) {
			return "Monitoring alerts enabled for: " + want.String()
		}
		return "Monitoring alerts already enabled for: " + want.String()
	case alertOff:
		if alerts.Unsubscribe(chatID) {
			return "Monitoring alerts disabled for this chat."
		}
		return "Monitoring alerts are already disabled for this chat."
	default:
		if current, ok := alerts.Subscription(chatID); ok {
			return "Alerts status: ON (" + current.String() + ")"
		}
		return "Alerts status: OFF"
	}
}

type commands struct {
	services Services
}

func (c *commands) premium(ctx context.Context, args []string) string {
	if c.services.Pipeline == nil {
		return "Pipeline unavailable"
	}
	days, err := parseDays(args)
	if err != nil {
		return fmt.Sprintf("Usage: /premium [days]  (1-%d)", maxHistoryDays)
	}
	ts, err := c.services.Pipeline.Series(ctx, domain.SeriesPremium, days)
	if err != nil {
		return fmt.Sprintf("Error loading premium: %v", err)
	}
	if len(ts) == 0 {
		return "No premium data yet."
	}
	lines := []string{fmt.Sprintf("Kimchi premium (last %d days):", days)}
	for _, d := range descending(ts.Dates()) {
		lines = append(lines, fmt.Sprintf("%s  %s%%", d, series.Format(ts[d], series.DisplayPlaces)))
	}
	return strings.Join(lines, "\n")
}

func (c *commands) thresholds(ctx context.Context, args []string) string {
	if c.services.Pipeline == nil {
		return "Pipeline unavailable"
	}
	days, err := parseDays(args)
	if err != nil {
		return fmt.Sprintf("Usage: /thresholds [days]  (1-%d)", maxHistoryDays)
	}
	ts, err := c.services.Pipeline.Thresholds(ctx, days)
	if err != nil {
		return fmt.Sprintf("Error loading thresholds: %v", err)
	}
	if len(ts) == 0 {
		return "No thresholds yet."
	}
	lines := []string{fmt.Sprintf("Premium thresholds (last %d days):", days)}
	for _, d := range descending(ts.Dates()) {
		lines = append(lines, formatThreshold(d, ts[d]))
	}
	return strings.Join(lines, "\n")
}

func (c *commands) strategy(ctx context.Context) string {
	if c.services.Strategy == nil {
		return "Strategy service unavailable"
	}
	rec, err := c.services.Strategy.Latest(ctx)
	if errors.Is(err, service.ErrNoStrategy) {
		return "No strategy yet. Try /analyze."
	}
	if err != nil {
		return fmt.Sprintf("Error loading strategy: %v", err)
	}
	return formatStrategy(rec)
}

func (c *commands) monitor(ctx context.Context) string {
	if c.services.Monitor == nil {
		return "Monitoring unavailable"
	}
	result, err := c.services.Monitor.Check(ctx)
	if errors.Is(err, service.ErrNoStrategy) {
		return "No strategy yet. Try /analyze."
	}
	if err != nil {
		return fmt.Sprintf("Error checking price: %v", err)
	}
	return formatMonitor(result)
}

func (c *commands) analyze(ctx context.Context, args []string) string {
	if c.services.Strategy == nil {
		return "Strategy service unavailable"
	}
	force := len(args) > 0 && strings.EqualFold(strings.TrimSpace(args[0]), "force")
	outcome, err := c.services.Strategy.Analyze(ctx, force)
	if err != nil {
		log.Printf("bot analyze error: %v", err)
		return "Analysis failed, try again later."
	}
	if outcome.Skipped {
		return fmt.Sprintf("Strategy for %s already exists. Use /analyze force to regenerate.", outcome.Today)
	}
	if outcome.Record == nil {
		return "Analysis finished without a record."
	}
	return truncate(formatStrategy(*outcome.Record))
}

// chart renders the premium band. A nil image means caption holds the reply.
func (c *commands) chart(ctx context.Context, args []string) (*chart.Image, string) {
	if c.services.Pipeline == nil || c.services.Charts == nil {
		return nil, "Charts unavailable"
	}
	days, err := parseDaysWithin(args, defaultChartDays, maxChartDays)
	if err != nil {
		return nil, fmt.Sprintf("Usage: /chart [days]  (1-%d)", maxChartDays)
	}

	in := chart.Input{}
	if in.Premium, err = c.services.Pipeline.Series(ctx, domain.SeriesPremium, days); err != nil {
		return nil, fmt.Sprintf("Error loading premium: %v", err)
	}
	if in.Thresholds, err = c.services.Pipeline.Thresholds(ctx, days); err != nil {
		return nil, fmt.Sprintf("Error loading thresholds: %v", err)
	}
	if in.USDT, err = c.services.Pipeline.Series(ctx, domain.SeriesUSDT, days); err != nil {
		return nil, fmt.Sprintf("Error loading USDT: %v", err)
	}
	if in.Rate, err = c.services.Pipeline.Series(ctx, domain.SeriesRate, days); err != nil {
		return nil, fmt.Sprintf("Error loading rate: %v", err)
	}
	if len(in.Premium) < 2 {
		return nil, "Not enough premium data to chart yet."
	}

	img, err := c.services.Charts.RenderPremiumChart(in)
	if err != nil {
		log.Printf("bot chart error: %v", err)
		return nil, "Chart rendering failed."
	}
	caption := fmt.Sprintf("Kimchi premium, last %d days", days)
	if d, rec, ok := in.Thresholds.Latest(); ok {
		caption += fmt.Sprintf("\nBand on %s: buy %s%% / sell %s%%",
			d,
			series.Format(rec.BuyThreshold, series.DisplayPlaces),
			series.Format(rec.SellThreshold, series.DisplayPlaces),
		)
	}
	return img, caption
}

func parseDays(args []string) (int, error) {
	return parseDaysWithin(args, defaultHistoryDays, maxHistoryDays)
}

func parseDaysWithin(args []string, def, limit int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, err
	}
	if n < 1 || n > limit {
		return 0, errors.New("days out of range")
	}
	return n, nil
}

func formatThreshold(date string, r domain.ThresholdRecord) string {
	line := fmt.Sprintf(
		"%s  buy %s%%  sell %s%%  ma5 %s%%",
		date,
		series.Format(r.BuyThreshold, series.DisplayPlaces),
		series.Format(r.SellThreshold, series.DisplayPlaces),
		series.Format(r.MovingAverage5, series.DisplayPlaces),
	)
	if r.Crossed() {
		line += "  (crossed)"
	}
	return line
}

func formatStrategy(r domain.StrategyRecord) string {
	msg := fmt.Sprintf(
		"Strategy %s\nBuy below: %s KRW\nSell above: %s KRW\nExpected return: %s%%",
		r.AnalysisDate,
		series.Format(r.BuyPrice, series.DisplayPlaces),
		series.Format(r.SellPrice, series.DisplayPlaces),
		series.Format(r.ExpectedReturn, series.DisplayPlaces),
	)
	if r.Summary != "" {
		msg += "\n\n" + r.Summary
	}
	return msg
}

func formatMonitor(r domain.MonitorResult) string {
	lines := []string{
		fmt.Sprintf("USDT %s KRW -> %s", series.Format(r.USDTPrice, series.DisplayPlaces), strings.ToUpper(string(r.Action))),
		fmt.Sprintf("Strategy %s: buy < %s, sell > %s",
			r.LatestStrategyDate,
			series.Format(r.BuyPrice, series.DisplayPlaces),
			series.Format(r.SellPrice, series.DisplayPlaces),
		),
	}
	if r.Premium != nil {
		lines = append(lines, fmt.Sprintf("Premium %s: %s%%", r.PremiumDate, series.Format(*r.Premium, series.DisplayPlaces)))
	}
	if r.Threshold != nil {
		lines = append(lines, "Thresholds "+formatThreshold(r.ThresholdDate, *r.Threshold))
	}
	return strings.Join(lines, "\n")
}

func descending(dates []string) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[len(dates)-1-i] = d
	}
	return out
}

func truncate(msg string) string {
	if len(msg) > maxReplyLength {
		return msg[:maxReplyLength] + "\n\n[truncated]"
	}
	return msg
}
