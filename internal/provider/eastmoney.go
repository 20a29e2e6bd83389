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

// Eastmoney fetches quotes and klines from the push2 endpoints, which
// tend to be more stable than Sina for minute data.
type Eastmoney struct {
	client   *http.Client
	location *time.Location
}

// NewEastmoney creates an Eastmoney provider.
func NewEastmoney(timeout time.Duration, loc *time.Location) *Eastmoney {
	return &Eastmoney{
		client:   &http.Client{Timeout: timeout},
		location: loc,
	}
}

// Name returns the provider name.
func (e *Eastmoney) Name() string { return "eastmoney" }

// secid maps sh600158 -> "1.600158", szNNNNNN -> "0.NNNNNN".
func secid(symbol string) (string, error) {
	if len(symbol) != 8 {
		return "", errors.Wrapf(errors.ErrSymbolMalformed, "%q", symbol)
	}
	switch symbol[:2] {
	case "sh":
		return "1." + symbol[2:], nil
	case "sz":
		return "0." + symbol[2:], nil
	default:
		return "", errors.Wrapf(errors.ErrSymbolMalformed, "%q", symbol)
	}
}

type emQuoteResponse struct {
	Data map[string]json.RawMessage `json:"data"`
}

// Quote fetches the live quote for one symbol. Prices come scaled by 100.
func (e *Eastmoney) Quote(ctx context.Context, symbol string) (models.QuoteSnapshot, error) {
	id, err := secid(symbol)
	if err != nil {
		return models.QuoteSnapshot{}, errors.NewProviderError(e.Name(), symbol, "bad symbol", err)
	}

	url := fmt.Sprintf(
		"https://push2.eastmoney.com/api/qt/stock/get?secid=%s&fields=f58,f43,f44,f45,f46,f60,f47,f48,f86", id)
	body, err := httpGet(ctx, e.client, url, map[string]string{"Referer": "https://quote.eastmoney.com"})
	if err != nil {
		return models.QuoteSnapshot{}, errors.NewProviderError(e.Name(), symbol, "fetching quote", err)
	}
	return parseEastmoneyQuote(body, symbol, e.location)
}

func parseEastmoneyQuote(body []byte, symbol string, loc *time.Location) (models.QuoteSnapshot, error) {
	var resp emQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data == nil {
		return models.QuoteSnapshot{}, errors.NewProviderError("eastmoney", symbol, "unexpected quote json", err)
	}

	fnum := func(key string) float64 {
		raw, ok := resp.Data[key]
		if !ok {
			return 0
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0
		}
		return v
	}

	name := symbol
	if raw, ok := resp.Data["f58"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			name = s
		}
	}

	var ts time.Time
	if sec := fnum("f86"); sec > 0 {
		ts = time.Unix(int64(sec), 0).In(loc)
	}

	return models.QuoteSnapshot{
		Symbol:    symbol,
		Name:      name,
		Last:      fnum("f43") / 100,
		High:      fnum("f44") / 100,
		Low:       fnum("f45") / 100,
		Open:      fnum("f46") / 100,
		PreClose:  fnum("f60") / 100,
		Volume:    fnum("f47") * 100, // lots -> shares
		Amount:    fnum("f48"),
		Timestamp: ts,
		Source:    "eastmoney",
	}, nil
}

type emKlineResponse struct {
	Data struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

// Kline fetches intraday bars for one trading day.
func (e *Eastmoney) Kline(ctx context.Context, symbol string, scaleMin int, day time.Time) (models.BarSeries, error) {
	id, err := secid(symbol)
	if err != nil {
		return nil, errors.NewProviderError(e.Name(), symbol, "bad symbol", err)
	}

	ds := day.In(e.location).Format("20060102")
	url := fmt.Sprintf(
		"https://push2his.eastmoney.com/api/qt/stock/kline/get?secid=%s&klt=%d&fqt=1&beg=%s&end=%s&lmt=1000"+
			"&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61",
		id, scaleMin, ds, ds)
	body, err := httpGet(ctx, e.client, url, map[string]string{"Referer": "https://quote.eastmoney.com"})
	if err != nil {
		return nil, errors.NewProviderError(e.Name(), symbol, "fetching kline", err)
	}
	return parseEastmoneyKline(body, symbol, e.location)
}

// Daily fetches the most recent daily bars, forward-adjusted, newest last.
func (e *Eastmoney) Daily(ctx context.Context, symbol string, limit int) (models.BarSeries, error) {
	id, err := secid(symbol)
	if err != nil {
		return nil, errors.NewProviderError(e.Name(), symbol, "bad symbol", err)
	}
	if limit <= 0 {
		limit = 60
	}

	url := fmt.Sprintf(
		"https://push2his.eastmoney.com/api/qt/stock/kline/get?secid=%s&klt=101&fqt=1&end=20500101&lmt=%d"+
			"&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61",
		id, limit)
	body, err := httpGet(ctx, e.client, url, map[string]string{"Referer": "https://quote.eastmoney.com"})
	if err != nil {
		return nil, errors.NewProviderError(e.Name(), symbol, "fetching daily kline", err)
	}
	return parseEastmoneyKline(body, symbol, e.location)
}

// parseEastmoneyKline decodes klines of the form
// "YYYY-MM-DD HH:MM,open,close,high,low,volume,amount,...". Daily bars
// carry a bare date in the first field.
func parseEastmoneyKline(body []byte, symbol string, loc *time.Location) (models.BarSeries, error) {
	var resp emKlineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewProviderError("eastmoney", symbol, "unexpected kline json", err)
	}

	var bars models.BarSeries
	for _, line := range resp.Data.Klines {
		parts := strings.Split(line, ",")
		if len(parts) < 7 {
			continue
		}
		ts, err := parseBarTime(parts[0], loc)
		if err != nil {
			continue
		}
		o := parseF(parts[1])
		c := parseF(parts[2])
		h := parseF(parts[3])
		l := parseF(parts[4])
		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    parseF(parts[5]) * 100, // lots -> shares
			Amount:    parseF(parts[6]),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func parseBarTime(s string, loc *time.Location) (time.Time, error) {
	var err error
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02"} {
		var ts time.Time
		if ts, err = time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}

func parseF(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
