package dexscreener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pairJSON = `{"chainId":"solana","dexId":"raydium","pairAddress":"Pair1","baseToken":{"address":"Mint1","name":"Dog","symbol":"DOG"},
"quoteToken":{"address":"So11111111111111111111111111111111111111112","name":"Wrapped SOL","symbol":"SOL"},
"priceNative":"0.0001","priceUsd":"0.015","liquidity":{"usd":45000.5,"base":1000000,"quote":150},"fdv":15000,"marketCap":15000,
"pairCreatedAt":1718000000000,"boosts":{"active":2}}`

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/Mint1", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return &Client{BaseURL: srv.URL, HTTP: srv.Client()}
}

func TestFetchToken(t *testing.T) {
	c := serve(t, http.StatusOK, `{"schemaVersion":"1.0.0","pairs":[`+pairJSON+`]}`)

	data, err := c.FetchToken(context.Background(), "Mint1")
	require.NoError(t, err)
	require.Len(t, data.Pairs, 1)

	p := data.First()
	assert.Equal(t, "DOG", p.BaseToken.Symbol)
	assert.True(t, p.PriceUSD.Equal(decimal.RequireFromString("0.015")))
	assert.True(t, p.Liquidity.Quote.Equal(decimal.NewFromInt(150)))
	assert.True(t, p.HasBoost())
	assert.JSONEq(t, pairJSON, string(p.Raw))
}

func TestFetchToken_NoPairs(t *testing.T) {
	for name, body := range map[string]string{
		"null":    `{"schemaVersion":"1.0.0","pairs":null}`,
		"missing": `{"schemaVersion":"1.0.0"}`,
		"empty":   `{"schemaVersion":"1.0.0","pairs":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := serve(t, http.StatusOK, body).FetchToken(context.Background(), "Mint1")
			assert.ErrorIs(t, err, ErrNoPairs)
		})
	}
}

func TestFetchToken_HTTPError(t *testing.T) {
	_, err := serve(t, http.StatusTooManyRequests, `slow down`).FetchToken(context.Background(), "Mint1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoPairs)
}

func TestPair_NoBoost(t *testing.T) {
	assert.False(t, Pair{}.HasBoost())
	assert.False(t, Pair{Boosts: &Boosts{}}.HasBoost())
}
