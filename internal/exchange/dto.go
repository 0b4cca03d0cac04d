package exchange

import "github.com/shopspring/decimal"

// baseResponse mirrors Bybit's v5 response envelope: retCode 0 means
// success, any other value is an exchange-side error.
type baseResponse[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type instrumentsResult struct {
	List []instrumentDTO `json:"list"`
}

type instrumentDTO struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	ContractType string `json:"contractType"`
	QuoteCoin    string `json:"quoteCoin"`
}

type tickersResult struct {
	List []tickerDTO `json:"list"`
}

type tickerDTO struct {
	Symbol            string          `json:"symbol"`
	LastPrice         decimal.Decimal `json:"lastPrice"`
	Turnover24h       decimal.Decimal `json:"turnover24h"`
	OpenInterest      decimal.Decimal `json:"openInterest"`
	OpenInterestValue decimal.Decimal `json:"openInterestValue"`
	FundingRate       string          `json:"fundingRate"`
}

type klineResult struct {
	List [][]string `json:"list"`
}
