/*

This file contains the stable diagnostic names emitted by the rule sets and their payloads.
Names are part of the API: front ends map them to user-facing messages.

*/

package validation

import (
	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
)

const (
	// --- Errors ---

	// DebtBelowMinimum is the "debt below minimum" error: a loan left with debt under the
	// pool's dust limit. Clients that still use the name debt-less-then-dust-limit map it here.
	DebtBelowMinimum                = "debt-below-minimum"
	NotEnoughLiquidity              = "not-enough-liquidity"
	WithdrawMoreThanAvailable       = "withdraw-more-than-available"
	PaybackMoreThanDebt             = "payback-more-than-debt"
	AfterLupIndexBiggerThanHtpIndex = "after-lup-index-bigger-than-htp-index"

	// --- Warnings ---
	GenerateCloseToMaxLup = "generate-close-to-max-lup"
	PriceBelowHtp         = "price-below-htp"

	// --- Notices ---
	PriceAboveLup = "price-above-lup"

	// --- Successes ---
	PriceBetweenHtpAndLup = "price-between-htp-and-lup"
)

// MinDebtData is the payload of DebtBelowMinimum.
type MinDebtData struct {
	MinDebtAmount string `json:"min_debt_amount"`
}

// AmountData carries the largest amount the rejected action could have used.
type AmountData struct {
	Amount string `json:"amount"`
}

// LupData carries the LUP the position is being measured against.
type LupData struct {
	Lup string `json:"lup"`
}

// IndexData carries the bucket indices an LUP/HTP rule compared.
type IndexData struct {
	AfterLupIndex int64 `json:"after_lup_index"`
	HtpIndex      int64 `json:"htp_index"`
}

// PriceData carries a lending price with the pool boundaries it was compared to.
type PriceData struct {
	Price string `json:"price"`
	Htp   string `json:"htp"`
	Lup   string `json:"lup"`
}

func diagnostic(name string, data any) []types.Diagnostic {
	return []types.Diagnostic{{Name: name, Data: data}}
}

func amountData(amount sdkmath.LegacyDec) AmountData {
	return AmountData{Amount: utils.FormatCryptoBalance(amount)}
}
