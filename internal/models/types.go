package models

import "time"

type MultiCurrency struct {
	USD float64 `json:"usd"`
}

// CoinSummary is one row of the /coins/markets listing.
type CoinSummary struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image,omitempty"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	MarketCapRank            int     `json:"market_cap_rank"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
}

type CoinImage struct {
	Large string `json:"large"`
}

type CoinDescription struct {
	EN string `json:"en"`
}

type CoinLinks struct {
	Homepage          []string `json:"homepage"`
	Whitepaper        string   `json:"whitepaper"`
	BlockchainSite    []string `json:"blockchain_site"`
	OfficialForumURL  []string `json:"official_forum_url"`
	TwitterScreenName string   `json:"twitter_screen_name"`
	SubredditURL      string   `json:"subreddit_url"`
}

type CoinMarketData struct {
	CurrentPrice             MultiCurrency `json:"current_price"`
	MarketCap                MultiCurrency `json:"market_cap"`
	TotalVolume              MultiCurrency `json:"total_volume"`
	High24h                  MultiCurrency `json:"high_24h"`
	Low24h                   MultiCurrency `json:"low_24h"`
	ATH                      MultiCurrency `json:"ath"`
	ATL                      MultiCurrency `json:"atl"`
	CirculatingSupply        float64       `json:"circulating_supply"`
	TotalSupply              float64       `json:"total_supply"`
	MaxSupply                float64       `json:"max_supply"`
	PriceChangePercentage24h float64       `json:"price_change_percentage_24h"`
	PriceChangePercentage7d  float64       `json:"price_change_percentage_7d"`
	PriceChangePercentage30d float64       `json:"price_change_percentage_30d"`
	PriceChangePercentage1y  float64       `json:"price_change_percentage_1y"`
}

// CoinDetail is the /coins/{id} document with market data included.
type CoinDetail struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Image         CoinImage       `json:"image"`
	MarketCapRank int             `json:"market_cap_rank"`
	Description   CoinDescription `json:"description"`
	Links         CoinLinks       `json:"links"`
	MarketData    CoinMarketData  `json:"market_data"`
}

// ChartPoint is a [timestampMillis, value] pair.
type ChartPoint [2]float64

func (p ChartPoint) Time() time.Time {
	return time.UnixMilli(int64(p[0])).UTC()
}

func (p ChartPoint) Value() float64 {
	return p[1]
}

// ChartData holds three parallel series over the requested window.
type ChartData struct {
	Prices       []ChartPoint `json:"prices"`
	MarketCaps   []ChartPoint `json:"market_caps"`
	TotalVolumes []ChartPoint `json:"total_volumes"`
}

// SearchCoin is a coin match from /search.
type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	APISymbol     string `json:"api_symbol"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
	Thumb         string `json:"thumb"`
	Large         string `json:"large"`
}

type SearchResponse struct {
	Coins []SearchCoin `json:"coins"`
}

// GlobalData is the aggregate market snapshot from /global.
type GlobalData struct {
	ActiveCryptocurrencies          int                `json:"active_cryptocurrencies"`
	Markets                         int                `json:"markets"`
	TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
	TotalVolume                     map[string]float64 `json:"total_volume"`
	MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt                       int64              `json:"updated_at"`
}

type GlobalResponse struct {
	Data GlobalData `json:"data"`
}

// TrendingItem is one entry of /search/trending.
type TrendingItem struct {
	ID            string        `json:"id"`
	CoinID        int           `json:"coin_id"`
	Name          string        `json:"name"`
	Symbol        string        `json:"symbol"`
	MarketCapRank int           `json:"market_cap_rank"`
	Thumb         string        `json:"thumb"`
	Small         string        `json:"small"`
	Large         string        `json:"large"`
	Slug          string        `json:"slug"`
	PriceBTC      float64       `json:"price_btc"`
	Score         int           `json:"score"`
	Data          *TrendingData `json:"data,omitempty"`
}

type TrendingData struct {
	Price                    float64            `json:"price"`
	PriceChangePercentage24h map[string]float64 `json:"price_change_percentage_24h"`
	MarketCap                string             `json:"market_cap"`
	TotalVolume              string             `json:"total_volume"`
}

type TrendingCoin struct {
	Item TrendingItem `json:"item"`
}

// TrendingResponse keeps the upstream {"coins": [{"item": ...}]} shape the frontend reads.
type TrendingResponse struct {
	Coins []TrendingCoin `json:"coins"`
}
