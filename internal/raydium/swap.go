package raydium

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/solana"
)

const txVersion = "V0"

// Quote is a swap-base-in quote. Amounts are raw token units. Raw holds the
// full response, which the build endpoint expects back verbatim.
type Quote struct {
	InputMint            string
	OutputMint           string
	InputAmount          decimal.Decimal
	OutputAmount         decimal.Decimal
	OtherAmountThreshold decimal.Decimal
	SlippageBps          int
	PriceImpactPct       decimal.Decimal
	Raw                  json.RawMessage
}

type quoteResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Version string `json:"version"`
	Msg     string `json:"msg"`
	Data    struct {
		SwapType             string          `json:"swapType"`
		InputMint            string          `json:"inputMint"`
		InputAmount          decimal.Decimal `json:"inputAmount"`
		OutputMint           string          `json:"outputMint"`
		OutputAmount         decimal.Decimal `json:"outputAmount"`
		OtherAmountThreshold decimal.Decimal `json:"otherAmountThreshold"`
		SlippageBps          int             `json:"slippageBps"`
		PriceImpactPct       decimal.Decimal `json:"priceImpactPct"`
	} `json:"data"`
}

// GetQuote prices swapping amount raw units of inputMint into outputMint.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", amount.Truncate(0).String())
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("txVersion", txVersion)
	u := c.config.SwapURL + "/compute/swap-base-in?" + q.Encode()

	var raw json.RawMessage
	if err := c.doJSON(ctx, "GET", u, nil, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrQuoteUnavailable, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrQuoteUnavailable, resp.Msg)
	}
	c.quoteCount.Add(1)

	log.Debug().
		Str("in", inputMint).
		Str("out", outputMint).
		Str("in_amount", resp.Data.InputAmount.String()).
		Str("out_amount", resp.Data.OutputAmount.String()).
		Str("price_impact", resp.Data.PriceImpactPct.String()).
		Msg("raydium: quote received")

	return &Quote{
		InputMint:            resp.Data.InputMint,
		OutputMint:           resp.Data.OutputMint,
		InputAmount:          resp.Data.InputAmount,
		OutputAmount:         resp.Data.OutputAmount,
		OtherAmountThreshold: resp.Data.OtherAmountThreshold,
		SlippageBps:          resp.Data.SlippageBps,
		PriceImpactPct:       resp.Data.PriceImpactPct,
		Raw:                  raw,
	}, nil
}

// WrapFlags reports whether SOL must be wrapped on input or unwrapped on output.
func WrapFlags(inputMint, outputMint string) (wrapSol, unwrapSol bool) {
	return inputMint == string(solana.WrappedSOLMint), outputMint == string(solana.WrappedSOLMint)
}

// BuildParams describes the transaction to build.
type BuildParams struct {
	Wallet       string
	Quote        *Quote
	TokenAccount string
}

type buildRequest struct {
	ComputeUnitPriceMicroLamports string          `json:"computeUnitPriceMicroLamports"`
	SwapResponse                  json.RawMessage `json:"swapResponse"`
	TxVersion                     string          `json:"txVersion"`
	Wallet                        string          `json:"wallet"`
	WrapSol                       bool            `json:"wrapSol"`
	UnwrapSol                     bool            `json:"unwrapSol"`
	InputAccount                  *string         `json:"inputAccount,omitempty"`
	OutputAccount                 *string         `json:"outputAccount,omitempty"`
}

type buildResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Version string `json:"version"`
	Msg     string `json:"msg"`
	Data    []struct {
		Transaction string `json:"transaction"`
	} `json:"data"`
}

// BuildTransaction returns the unsigned base64 transaction for a quote.
// Only the first transaction of the response is used.
func (c *Client) BuildTransaction(ctx context.Context, p BuildParams) (string, error) {
	if p.Quote == nil || len(p.Quote.Raw) == 0 {
		return "", fmt.Errorf("%w: missing quote", ErrBuildFailed)
	}
	fees, err := c.PriorityFee(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	wrap, unwrap := WrapFlags(p.Quote.InputMint, p.Quote.OutputMint)
	req := buildRequest{
		ComputeUnitPriceMicroLamports: fees.High.Truncate(0).String(),
		SwapResponse:                  p.Quote.Raw,
		TxVersion:                     txVersion,
		Wallet:                        p.Wallet,
		WrapSol:                       wrap,
		UnwrapSol:                     unwrap,
	}
	if !wrap {
		req.InputAccount = &p.TokenAccount
	}
	if !unwrap {
		req.OutputAccount = &p.TokenAccount
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshal: %v", ErrBuildFailed, err)
	}

	var resp buildResponse
	if err := c.doJSON(ctx, "POST", c.config.SwapURL+"/transaction/swap-base-in", payload, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: %s", ErrBuildFailed, resp.Msg)
	}
	if len(resp.Data) == 0 || resp.Data[0].Transaction == "" {
		return "", fmt.Errorf("%w: no transaction returned", ErrBuildFailed)
	}
	if len(resp.Data) > 1 {
		log.Warn().Int("count", len(resp.Data)).Msg("raydium: multiple transactions returned, using the first")
	}
	c.buildCount.Add(1)
	return resp.Data[0].Transaction, nil
}
