package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"crypto-portal/internal/models"
)

const (
	defaultTopCount = 10
	maxTopCount     = 25
	maxSearchResult = 10
	commandTimeout  = 30 * time.Second
)

var errEmptyResult = errors.New("market data returned no result")

// MarketData is the subset of the market client the bot queries.
type MarketData interface {
	GetTopCoins(ctx context.Context, limit int) ([]models.CoinSummary, error)
	GetCoinDetail(ctx context.Context, coinID string) (*models.CoinDetail, error)
	GetCoinChartData(ctx context.Context, coinID string, days int) (*models.ChartData, error)
	SearchCoins(ctx context.Context, query string) ([]models.SearchCoin, error)
	GetGlobalData(ctx context.Context) (*models.GlobalData, error)
}

// BriefWriter produces a short market commentary.
type BriefWriter interface {
	Write(ctx context.Context, global *models.GlobalData, top []models.CoinSummary) (string, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender
	market MarketData
	brief  BriefWriter
	log    zerolog.Logger
	now    func() time.Time
}

// New connects to Telegram. brief may be nil, which disables /brief.
func New(token string, market MarketData, brief BriefWriter, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, market, brief, log)
	b.api = api
	return b, nil
}

func newBot(s sender, market MarketData, brief BriefWriter, log zerolog.Logger) *Bot {
	return &Bot{
		sender: s,
		market: market,
		brief:  brief,
		log:    log.With().Str("component", "bot").Logger(),
		now:    time.Now,
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.log.Info().Str("account", b.api.Self.UserName).Msg("Authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	b.handleUpdates(ctx, updates)
}

func (b *Bot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage answers one command. A panic is logged and the update dropped so
// the polling loop, and the process with it, keeps running.
func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	command := m.Command()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("command", command).Msg("Command panicked")
		}
	}()

	reply := b.handleCommand(ctx, command, m.CommandArguments())
	if reply == "" {
		return
	}

	msg := tgbotapi.NewMessage(m.Chat.ID, reply)
	if _, err := b.sender.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", m.Chat.ID).Msg("Failed to send reply")
	}
}

// handleCommand returns the reply text for a command, or "" for commands the bot ignores.
func (b *Bot) handleCommand(ctx context.Context, command, args string) string {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	fields := strings.Fields(args)

	switch command {
	case "start", "help":
		return helpText(b.brief != nil)

	case "top":
		count := defaultTopCount
		if len(fields) > 0 {
			n, err := strconv.Atoi(fields[0])
			if err != nil || n <= 0 {
				return "Usage: /top [count]"
			}
			count = min(n, maxTopCount)
		}
		coins, err := b.market.GetTopCoins(ctx, count)
		if err != nil {
			return b.failure("top", err)
		}
		return b.formatTopCoins(coins)

	case "coin":
		if len(fields) == 0 {
			return "Usage: /coin <id>"
		}
		detail, err := b.market.GetCoinDetail(ctx, strings.ToLower(fields[0]))
		if err == nil && detail == nil {
			err = errEmptyResult
		}
		if err != nil {
			return b.failure("coin", err)
		}
		return formatCoinDetail(detail)

	case "chart":
		if len(fields) == 0 {
			return "Usage: /chart <id> [days]"
		}
		days := 7
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				return "Usage: /chart <id> [days]"
			}
			days = n
		}
		coinID := strings.ToLower(fields[0])
		chart, err := b.market.GetCoinChartData(ctx, coinID, days)
		if err != nil {
			return b.failure("chart", err)
		}
		return formatChartSummary(coinID, days, chart)

	case "search":
		if len(fields) == 0 {
			return "Usage: /search <query>"
		}
		coins, err := b.market.SearchCoins(ctx, strings.Join(fields, " "))
		if err != nil {
			return b.failure("search", err)
		}
		return formatSearch(coins)

	case "global":
		global, err := b.market.GetGlobalData(ctx)
		if err == nil && global == nil {
			err = errEmptyResult
		}
		if err != nil {
			return b.failure("global", err)
		}
		return formatGlobal(global)

	case "brief":
		if b.brief == nil {
			return "Market briefs are not enabled."
		}
		global, err := b.market.GetGlobalData(ctx)
		if err != nil {
			return b.failure("brief", err)
		}
		top, err := b.market.GetTopCoins(ctx, defaultTopCount)
		if err != nil {
			return b.failure("brief", err)
		}
		text, err := b.brief.Write(ctx, global, top)
		if err != nil {
			return b.failure("brief", err)
		}
		return text
	}

	return ""
}

func (b *Bot) failure(command string, err error) string {
	b.log.Warn().Err(err).Str("command", command).Msg("Command failed")
	return "⚠️ Market data is unavailable right now. Please try again in a moment."
}

func helpText(withBrief bool) string {
	lines := []string{
		"/top [count] - top coins by market cap",
		"/coin <id> - price and stats for a coin",
		"/chart <id> [days] - price move over a window",
		"/search <query> - find a coin id",
		"/global - total market overview",
	}
	if withBrief {
		lines = append(lines, "/brief - short market commentary")
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) formatTopCoins(coins []models.CoinSummary) string {
	var messages []string
	for i, coin := range coins {
		messages = append(messages, formatSingleCoin(i+1, coin))
	}

	timestamp := b.now().UTC().Format("2006-01-02 15:04 UTC")

	return fmt.Sprintf("🏆 TOP %d BY MARKET CAP 🏆\n\n%s\n\n📊 Updated: %s",
		len(coins),
		strings.Join(messages, "\n"),
		timestamp)
}

func formatSingleCoin(rank int, coin models.CoinSummary) string {
	rankEmoji := "▫️"
	switch rank {
	case 1:
		rankEmoji = "🥇"
	case 2:
		rankEmoji = "🥈"
	case 3:
		rankEmoji = "🥉"
	}

	return fmt.Sprintf("%s #%d %s | 💰 %s (%s%.2f%%) | 💎 MC: %s",
		rankEmoji,
		rank,
		strings.ToUpper(coin.Symbol),
		formatPrice(coin.CurrentPrice),
		changeIndicator(coin.PriceChangePercentage24h),
		coin.PriceChangePercentage24h,
		formatValue(coin.MarketCap))
}

func formatCoinDetail(d *models.CoinDetail) string {
	md := d.MarketData
	return fmt.Sprintf(`%s (%s) #%d
- Price: %s
- 24h: %s%.2f%% | 7d: %.2f%% | 30d: %.2f%% | 1y: %.2f%%
- 24h Range: %s - %s
- Market Cap: %s
- 24h Volume: %s
- Circulating Supply: %s
- ATH: %s | ATL: %s`,
		d.Name,
		strings.ToUpper(d.Symbol),
		d.MarketCapRank,
		formatPrice(md.CurrentPrice.USD),
		changeIndicator(md.PriceChangePercentage24h),
		md.PriceChangePercentage24h,
		md.PriceChangePercentage7d,
		md.PriceChangePercentage30d,
		md.PriceChangePercentage1y,
		formatPrice(md.Low24h.USD),
		formatPrice(md.High24h.USD),
		formatValue(md.MarketCap.USD),
		formatValue(md.TotalVolume.USD),
		formatValue(md.CirculatingSupply),
		formatPrice(md.ATH.USD),
		formatPrice(md.ATL.USD))
}

func formatChartSummary(coinID string, days int, chart *models.ChartData) string {
	if chart == nil || len(chart.Prices) == 0 {
		return fmt.Sprintf("No price history for %s", coinID)
	}

	first := chart.Prices[0]
	last := chart.Prices[len(chart.Prices)-1]
	high, low := first.Value(), first.Value()
	for _, p := range chart.Prices {
		high = max(high, p.Value())
		low = min(low, p.Value())
	}

	var change float64
	if first.Value() != 0 {
		change = (last.Value() - first.Value()) / first.Value() * 100
	}

	return fmt.Sprintf(`%s over %d day(s)
- From: %s (%s)
- To: %s (%s)
- Change: %s%.2f%%
- High: %s | Low: %s`,
		coinID,
		days,
		formatPrice(first.Value()),
		first.Time().Format("2006-01-02 15:04"),
		formatPrice(last.Value()),
		last.Time().Format("2006-01-02 15:04"),
		changeIndicator(change),
		change,
		formatPrice(high),
		formatPrice(low))
}

func formatSearch(coins []models.SearchCoin) string {
	if len(coins) == 0 {
		return "No coins found."
	}

	var lines []string
	for i, c := range coins {
		if i == maxSearchResult {
			break
		}
		rank := "-"
		if c.MarketCapRank > 0 {
			rank = strconv.Itoa(c.MarketCapRank)
		}
		lines = append(lines, fmt.Sprintf("%s (%s) id: %s rank: %s", c.Name, strings.ToUpper(c.Symbol), c.ID, rank))
	}
	return strings.Join(lines, "\n")
}

func formatGlobal(g *models.GlobalData) string {
	return fmt.Sprintf(`🌐 Global Market
- Total Market Cap: %s (%s%.2f%% 24h)
- 24h Volume: %s
- BTC Dominance: %.2f%%
- ETH Dominance: %.2f%%
- Active Coins: %d | Markets: %d`,
		formatValue(g.TotalMarketCap["usd"]),
		changeIndicator(g.MarketCapChangePercentage24hUSD),
		g.MarketCapChangePercentage24hUSD,
		formatValue(g.TotalVolume["usd"]),
		g.MarketCapPercentage["btc"],
		g.MarketCapPercentage["eth"],
		g.ActiveCryptocurrencies,
		g.Markets)
}

func changeIndicator(pct float64) string {
	switch {
	case pct > 0:
		return "🟢"
	case pct < 0:
		return "🔴"
	default:
		return "➖"
	}
}

func formatValue(value float64) string {
	if value == 0 {
		return "N/A"
	}
	if value >= 1e12 {
		return fmt.Sprintf("%.2f T", value/1e12)
	}
	if value >= 1e9 {
		return fmt.Sprintf("%.2f B", value/1e9)
	}
	if value >= 1e6 {
		return fmt.Sprintf("%.2f M", value/1e6)
	}
	return fmt.Sprintf("%.2f", value)
}

func formatPrice(price float64) string {
	if price == 0 {
		return "N/A"
	}
	if price >= 1 {
		return fmt.Sprintf("$%.2f", price)
	}
	return fmt.Sprintf("$%.4f", price)
}
