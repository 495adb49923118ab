package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-portal/internal/models"
)

type fakeMarket struct {
	err       error
	lastLimit int
	lastID    string
	lastDays  int
	lastQuery string
}

func (f *fakeMarket) GetTopCoins(_ context.Context, limit int) ([]models.CoinSummary, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []models.CoinSummary{
		{ID: "bitcoin", Symbol: "btc", CurrentPrice: 62000, MarketCap: 1.2e12, PriceChangePercentage24h: 2.5},
		{ID: "ethereum", Symbol: "eth", CurrentPrice: 3400, MarketCap: 4.1e11, PriceChangePercentage24h: -1.25},
	}, nil
}

func (f *fakeMarket) GetCoinDetail(_ context.Context, coinID string) (*models.CoinDetail, error) {
	f.lastID = coinID
	if f.err != nil {
		return nil, f.err
	}
	return &models.CoinDetail{
		ID: coinID, Symbol: "btc", Name: "Bitcoin", MarketCapRank: 1,
		MarketData: models.CoinMarketData{
			CurrentPrice: models.MultiCurrency{USD: 62000},
			MarketCap:    models.MultiCurrency{USD: 1.2e12},
			ATH:          models.MultiCurrency{USD: 73000},
		},
	}, nil
}

func (f *fakeMarket) GetCoinChartData(_ context.Context, coinID string, days int) (*models.ChartData, error) {
	f.lastID = coinID
	f.lastDays = days
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChartData{Prices: []models.ChartPoint{
		{1700000000000, 100},
		{1700003600000, 120},
		{1700007200000, 90},
		{1700010800000, 110},
	}}, nil
}

func (f *fakeMarket) SearchCoins(_ context.Context, query string) ([]models.SearchCoin, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return []models.SearchCoin{{ID: "solana", Name: "Solana", Symbol: "sol", MarketCapRank: 5}}, nil
}

func (f *fakeMarket) GetGlobalData(_ context.Context) (*models.GlobalData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.GlobalData{
		ActiveCryptocurrencies:          14000,
		Markets:                         1100,
		TotalMarketCap:                  map[string]float64{"usd": 2.4e12},
		TotalVolume:                     map[string]float64{"usd": 9.5e10},
		MarketCapPercentage:             map[string]float64{"btc": 52.1, "eth": 16.9},
		MarketCapChangePercentage24hUSD: -0.5,
	}, nil
}

type fakeBrief struct {
	text string
	err  error
	top  int
}

func (f *fakeBrief) Write(_ context.Context, _ *models.GlobalData, top []models.CoinSummary) (string, error) {
	f.top = len(top)
	return f.text, f.err
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func newTestBot(market *fakeMarket, brief BriefWriter) (*Bot, *fakeSender) {
	s := &fakeSender{}
	b := newBot(s, market, brief, zerolog.Nop())
	b.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	return b, s
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	cmdLen := strings.IndexByte(text, ' ')
	if cmdLen < 0 {
		cmdLen = len(text)
	}
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text:     text,
			Chat:     &tgbotapi.Chat{ID: chatID},
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
		},
	}
}

func TestHandleCommand_Top(t *testing.T) {
	market := &fakeMarket{}
	b, _ := newTestBot(market, nil)

	reply := b.handleCommand(context.Background(), "top", "")
	assert.Equal(t, defaultTopCount, market.lastLimit)
	assert.Contains(t, reply, "TOP 2 BY MARKET CAP")
	assert.Contains(t, reply, "🥇 #1 BTC | 💰 $62000.00 (🟢2.50%) | 💎 MC: 1.20 T")
	assert.Contains(t, reply, "🥈 #2 ETH | 💰 $3400.00 (🔴-1.25%) | 💎 MC: 410.00 B")
	assert.Contains(t, reply, "Updated: 2024-03-01 12:30 UTC")
}

func TestHandleCommand_TopCount(t *testing.T) {
	market := &fakeMarket{}
	b, _ := newTestBot(market, nil)

	b.handleCommand(context.Background(), "top", "5")
	assert.Equal(t, 5, market.lastLimit)

	b.handleCommand(context.Background(), "top", "500")
	assert.Equal(t, maxTopCount, market.lastLimit)

	assert.Equal(t, "Usage: /top [count]", b.handleCommand(context.Background(), "top", "abc"))
}

func TestHandleCommand_Coin(t *testing.T) {
	market := &fakeMarket{}
	b, _ := newTestBot(market, nil)

	reply := b.handleCommand(context.Background(), "coin", "Bitcoin")
	assert.Equal(t, "bitcoin", market.lastID)
	assert.Contains(t, reply, "Bitcoin (BTC) #1")
	assert.Contains(t, reply, "- Price: $62000.00")
	assert.Contains(t, reply, "ATH: $73000.00")

	assert.Equal(t, "Usage: /coin <id>", b.handleCommand(context.Background(), "coin", ""))
}

func TestHandleCommand_Chart(t *testing.T) {
	market := &fakeMarket{}
	b, _ := newTestBot(market, nil)

	reply := b.handleCommand(context.Background(), "chart", "bitcoin 1")
	assert.Equal(t, 1, market.lastDays)
	assert.Contains(t, reply, "bitcoin over 1 day(s)")
	assert.Contains(t, reply, "Change: 🟢10.00%")
	assert.Contains(t, reply, "High: $120.00 | Low: $90.00")

	b.handleCommand(context.Background(), "chart", "bitcoin")
	assert.Equal(t, 7, market.lastDays)

	assert.Equal(t, "Usage: /chart <id> [days]", b.handleCommand(context.Background(), "chart", "bitcoin -3"))
}

func TestHandleCommand_Search(t *testing.T) {
	market := &fakeMarket{}
	b, _ := newTestBot(market, nil)

	reply := b.handleCommand(context.Background(), "search", "sol  ana")
	assert.Equal(t, "sol ana", market.lastQuery)
	assert.Equal(t, "Solana (SOL) id: solana rank: 5", reply)
}

func TestHandleCommand_Global(t *testing.T) {
	b, _ := newTestBot(&fakeMarket{}, nil)

	reply := b.handleCommand(context.Background(), "global", "")
	assert.Contains(t, reply, "Total Market Cap: 2.40 T (🔴-0.50% 24h)")
	assert.Contains(t, reply, "BTC Dominance: 52.10%")
	assert.Contains(t, reply, "Active Coins: 14000 | Markets: 1100")
}

func TestHandleCommand_Brief(t *testing.T) {
	b, _ := newTestBot(&fakeMarket{}, nil)
	assert.Equal(t, "Market briefs are not enabled.", b.handleCommand(context.Background(), "brief", ""))

	brief := &fakeBrief{text: "Markets drifted lower."}
	b, _ = newTestBot(&fakeMarket{}, brief)
	assert.Equal(t, "Markets drifted lower.", b.handleCommand(context.Background(), "brief", ""))
	assert.Equal(t, 2, brief.top)

	b, _ = newTestBot(&fakeMarket{}, &fakeBrief{err: errors.New("quota")})
	assert.Contains(t, b.handleCommand(context.Background(), "brief", ""), "try again")
}

func TestHandleCommand_UpstreamFailureOffersRetry(t *testing.T) {
	b, _ := newTestBot(&fakeMarket{err: errors.New("HTTP error status 429")}, nil)

	for _, cmd := range []string{"top", "global"} {
		assert.Contains(t, b.handleCommand(context.Background(), cmd, ""), "Please try again")
	}
	assert.Contains(t, b.handleCommand(context.Background(), "coin", "bitcoin"), "Please try again")
}

func TestHandleCommand_HelpAndUnknown(t *testing.T) {
	b, _ := newTestBot(&fakeMarket{}, &fakeBrief{})

	help := b.handleCommand(context.Background(), "help", "")
	assert.Contains(t, help, "/top")
	assert.Contains(t, help, "/brief")

	assert.Empty(t, b.handleCommand(context.Background(), "rank", ""))
}

func TestHandleUpdates_RepliesToCommands(t *testing.T) {
	b, s := newTestBot(&fakeMarket{}, nil)

	updates := make(chan tgbotapi.Update, 4)
	updates <- commandUpdate(42, "/global")
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 42}}}
	updates <- commandUpdate(7, "/search sol")
	updates <- tgbotapi.Update{}
	close(updates)

	b.handleUpdates(context.Background(), updates)

	require.Len(t, s.sent, 2)
	assert.Equal(t, int64(42), s.sent[0].ChatID)
	assert.Contains(t, s.sent[0].Text, "Global Market")
	assert.Equal(t, int64(7), s.sent[1].ChatID)
	assert.Contains(t, s.sent[1].Text, "Solana")
}

type emptyMarket struct {
	fakeMarket
}

func (emptyMarket) GetCoinDetail(context.Context, string) (*models.CoinDetail, error) {
	return nil, nil
}

func (emptyMarket) GetGlobalData(context.Context) (*models.GlobalData, error) {
	return nil, nil
}

type panickingMarket struct {
	fakeMarket
}

func (panickingMarket) GetGlobalData(context.Context) (*models.GlobalData, error) {
	panic("boom")
}

func TestHandleCommand_EmptyResultIsAFailure(t *testing.T) {
	s := &fakeSender{}
	b := newBot(s, &emptyMarket{}, nil, zerolog.Nop())

	assert.NotPanics(t, func() {
		assert.Contains(t, b.handleCommand(context.Background(), "coin", "bitcoin"), "Please try again")
		assert.Contains(t, b.handleCommand(context.Background(), "global", ""), "Please try again")
	})
}

func TestHandleUpdates_PanicDoesNotStopLoop(t *testing.T) {
	s := &fakeSender{}
	b := newBot(s, &panickingMarket{}, nil, zerolog.Nop())

	updates := make(chan tgbotapi.Update, 2)
	updates <- commandUpdate(1, "/global")
	updates <- commandUpdate(2, "/search sol")
	close(updates)

	assert.NotPanics(t, func() { b.handleUpdates(context.Background(), updates) })

	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(2), s.sent[0].ChatID)
	assert.Contains(t, s.sent[0].Text, "Solana")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "N/A", formatValue(0))
	assert.Equal(t, "512.50", formatValue(512.5))
	assert.Equal(t, "3.50 M", formatValue(3.5e6))
	assert.Equal(t, "7.25 B", formatValue(7.25e9))
	assert.Equal(t, "2.40 T", formatValue(2.4e12))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "N/A", formatPrice(0))
	assert.Equal(t, "$0.0123", formatPrice(0.01234))
	assert.Equal(t, "$1.50", formatPrice(1.5))
}

func TestFormatChartSummary_Empty(t *testing.T) {
	assert.Equal(t, "No price history for bitcoin", formatChartSummary("bitcoin", 7, &models.ChartData{}))
}
