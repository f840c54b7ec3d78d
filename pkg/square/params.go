package square

import (
	sq "github.com/square/square-go-sdk"
)

// RefundCreateParams describes a card refund against a captured payment.
type RefundCreateParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundCreateParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		PaymentID:      ptrString(p.PaymentID),
		AmountMoney:    moneyPtr(p.AmountCents, p.Currency),
	}
	if p.Reason != "" {
		req.Reason = ptrString(p.Reason)
	}
	return req
}

func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func int64Ptr(v int64) *int64 {
	return &v
}

func currencyPtr(code string) *sq.Currency {
	if code == "" {
		return nil
	}
	c := sq.Currency(code)
	return &c
}

func moneyPtr(amountCents int64, currency string) *sq.Money {
	return &sq.Money{
		Amount:   int64Ptr(amountCents),
		Currency: currencyPtr(currency),
	}
}
