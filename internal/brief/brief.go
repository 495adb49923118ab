package brief

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"crypto-portal/internal/models"
)

const (
	maxPromptCoins = 10
	maxTokens      = 300
)

const systemPrompt = "You are a crypto market analyst. Write a short, neutral market brief of at most " +
	"five sentences for a general audience. Do not give investment advice."

// ErrEmptyCompletion is returned when the API answers without any choices.
var ErrEmptyCompletion = errors.New("brief: empty completion")

// ChatCompleter is the part of the OpenAI client the writer needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Writer turns market snapshots into a short text brief.
type Writer struct {
	client ChatCompleter
	model  string
	log    zerolog.Logger
}

func NewWriter(apiKey, model string, log zerolog.Logger) *Writer {
	return newWriter(openai.NewClient(apiKey), model, log)
}

func newWriter(client ChatCompleter, model string, log zerolog.Logger) *Writer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Writer{
		client: client,
		model:  model,
		log:    log.With().Str("component", "brief").Logger(),
	}
}

func (w *Writer) Write(ctx context.Context, global *models.GlobalData, top []models.CoinSummary) (string, error) {
	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     w.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(global, top)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	w.log.Debug().
		Str("model", w.model).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("Brief generated")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(global *models.GlobalData, top []models.CoinSummary) string {
	var sb strings.Builder
	sb.WriteString("Current market snapshot (USD):\n")

	if global != nil {
		fmt.Fprintf(&sb, "Total market cap: %.0f (%+.2f%% in 24h)\n",
			global.TotalMarketCap["usd"], global.MarketCapChangePercentage24hUSD)
		fmt.Fprintf(&sb, "24h volume: %.0f\n", global.TotalVolume["usd"])
		fmt.Fprintf(&sb, "BTC dominance: %.2f%%, ETH dominance: %.2f%%\n",
			global.MarketCapPercentage["btc"], global.MarketCapPercentage["eth"])
	}

	if len(top) > 0 {
		sb.WriteString("Top coins:\n")
		for i, c := range top {
			if i == maxPromptCoins {
				break
			}
			fmt.Fprintf(&sb, "%d. %s price %.4f, 24h %+.2f%%\n",
				i+1, strings.ToUpper(c.Symbol), c.CurrentPrice, c.PriceChangePercentage24h)
		}
	}

	return sb.String()
}
