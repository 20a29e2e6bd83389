package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"ashare-sentinel/internal/errors"
	"ashare-sentinel/internal/models"
)

// Sina fetches quotes from the hq.sinajs.cn list endpoint and minute
// klines from the CN_MarketDataService API.
type Sina struct {
	client   *http.Client
	location *time.Location
}

// NewSina creates a Sina provider. Timestamps parse in loc, the
// exchange's local time.
func NewSina(timeout time.Duration, loc *time.Location) *Sina {
	return &Sina{
		client:   &http.Client{Timeout: timeout},
		location: loc,
	}
}

// Name returns the provider name.
func (s *Sina) Name() string { return "sina" }

// Quote fetches the live quote for one symbol.
func (s *Sina) Quote(ctx context.Context, symbol string) (models.QuoteSnapshot, error) {
	body, err := httpGet(ctx, s.client, "https://hq.sinajs.cn/list="+symbol,
		map[string]string{"Referer": "https://finance.sina.com.cn"})
	if err != nil {
		return models.QuoteSnapshot{}, errors.NewProviderError(s.Name(), symbol, "fetching quote", err)
	}
	return parseSinaQuote(string(body), symbol, s.location)
}

// parseSinaQuote decodes the `var hq_str_<sym>="..."` payload.
func parseSinaQuote(text, symbol string, loc *time.Location) (models.QuoteSnapshot, error) {
	start := strings.IndexByte(text, '"')
	if start < 0 {
		return models.QuoteSnapshot{}, errors.NewProviderError("sina", symbol, "unexpected quote payload", nil)
	}
	end := strings.IndexByte(text[start+1:], '"')
	if end < 0 {
		return models.QuoteSnapshot{}, errors.NewProviderError("sina", symbol, "unexpected quote payload", nil)
	}
	arr := strings.Split(text[start+1:start+1+end], ",")
	if len(arr) < 32 {
		return models.QuoteSnapshot{}, errors.NewProviderError("sina", symbol,
			fmt.Sprintf("unexpected quote fields=%d", len(arr)), nil)
	}

	f := func(i int) float64 {
		v, err := strconv.ParseFloat(arr[i], 64)
		if err != nil {
			return 0
		}
		return v
	}

	var ts time.Time
	if arr[30] != "" && arr[31] != "" {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", arr[30]+" "+arr[31], loc); err == nil {
			ts = t
		}
	}

	name := arr[0]
	if name == "" {
		name = symbol
	}
	return models.QuoteSnapshot{
		Symbol:    symbol,
		Name:      name,
		Open:      f(1),
		PreClose:  f(2),
		Last:      f(3),
		High:      f(4),
		Low:       f(5),
		Volume:    f(8),
		Amount:    f(9),
		Timestamp: ts,
		Source:    "sina",
	}, nil
}

type sinaKlineRow struct {
	Day    string      `json:"day"`
	Open   json.Number `json:"open"`
	High   json.Number `json:"high"`
	Low    json.Number `json:"low"`
	Close  json.Number `json:"close"`
	Volume json.Number `json:"volume"`
	Amount json.Number `json:"amount"`
}

// Kline fetches intraday bars for one trading day. Minute klines may
// start at 09:31; fine for a practical intraday VWAP.
func (s *Sina) Kline(ctx context.Context, symbol string, scaleMin int, day time.Time) (models.BarSeries, error) {
	url := fmt.Sprintf(
		"https://quotes.sina.cn/cn/api/json_v2.php/CN_MarketDataService.getKLineData?symbol=%s&scale=%d&ma=no&datalen=800",
		symbol, scaleMin)
	body, err := httpGet(ctx, s.client, url, nil)
	if err != nil {
		return nil, errors.NewProviderError(s.Name(), symbol, "fetching kline", err)
	}
	return parseSinaKline(body, symbol, day, s.location)
}

func parseSinaKline(body []byte, symbol string, day time.Time, loc *time.Location) (models.BarSeries, error) {
	var rows []sinaKlineRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.NewProviderError("sina", symbol, "unexpected kline json", err)
	}

	prefix := day.In(loc).Format("2006-01-02")
	var bars models.BarSeries
	for _, row := range rows {
		if !strings.HasPrefix(row.Day, prefix) {
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", row.Day, loc)
		if err != nil {
			continue
		}
		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      num(row.Open),
			High:      num(row.High),
			Low:       num(row.Low),
			Close:     num(row.Close),
			Volume:    num(row.Volume),
			Amount:    num(row.Amount),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// Daily fetches the most recent daily bars, newest last. scale=240 is
// the endpoint's daily interval.
func (s *Sina) Daily(ctx context.Context, symbol string, limit int) (models.BarSeries, error) {
	if limit <= 0 {
		limit = 60
	}
	url := fmt.Sprintf(
		"https://quotes.sina.cn/cn/api/json_v2.php/CN_MarketDataService.getKLineData?symbol=%s&scale=240&ma=no&datalen=%d",
		symbol, limit)
	body, err := httpGet(ctx, s.client, url, nil)
	if err != nil {
		return nil, errors.NewProviderError(s.Name(), symbol, "fetching daily kline", err)
	}
	return parseSinaDaily(body, symbol, s.location)
}

// parseSinaDaily decodes daily rows. Unlike the intraday parser there is
// no single-day filter; the caller wants the trailing window.
func parseSinaDaily(body []byte, symbol string, loc *time.Location) (models.BarSeries, error) {
	var rows []sinaKlineRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.NewProviderError("sina", symbol, "unexpected daily json", err)
	}

	var bars models.BarSeries
	for _, row := range rows {
		ts, err := time.ParseInLocation("2006-01-02", row.Day, loc)
		if err != nil {
			if ts, err = time.ParseInLocation("2006-01-02 15:04:05", row.Day, loc); err != nil {
				continue
			}
		}
		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      num(row.Open),
			High:      num(row.High),
			Low:       num(row.Low),
			Close:     num(row.Close),
			Volume:    num(row.Volume),
			Amount:    num(row.Amount),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func num(n json.Number) float64 {
	v, err := n.Float64()
	if err != nil {
		return 0
	}
	return v
}
