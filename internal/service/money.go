package service

import "github.com/shopspring/decimal"

// All arithmetic in the system is int64 paise; decimal is only used here, at
// the rendering edge, to produce rupee strings for documents and exports.
func formatINR(paise int64) string {
	rupees := decimal.NewFromInt(paise).Div(decimal.NewFromInt(100))
	return "INR " + rupees.StringFixed(2)
}
