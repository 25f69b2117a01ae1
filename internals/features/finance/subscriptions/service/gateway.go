// file: internals/features/finance/subscriptions/service/gateway.go
package service

import (
	"context"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

type ChargeResult struct {
	Success       bool
	Reference     string // transaction id di gateway
	FailureReason string
}

// PaymentGateway meng-charge payment method tersimpan (token), sinkron.
// Kegagalan gateway adalah input normal state machine renewal, bukan exception.
type PaymentGateway interface {
	Charge(ctx context.Context, token, orderID string, amount int64, currency string) (ChargeResult, error)
}

/*
=========================================================

	MidtransGateway — Core API, charge kartu via saved token.
	=========================================================
*/
type MidtransGateway struct {
	client coreapi.Client
}

// Panggil saat bootstrap app (sandbox)
func NewMidtransGateway(serverKey string) *MidtransGateway {
	g := &MidtransGateway{}
	g.client.New(serverKey, midtrans.Sandbox)
	return g
}

func (g *MidtransGateway) Charge(ctx context.Context, token, orderID string, amount int64, currency string) (ChargeResult, error) {
	req := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: amount,
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID: token,
		},
	}

	resp, err := g.client.ChargeTransaction(req)
	if err != nil {
		// network/gateway error → decline biasa bagi retry ladder
		return ChargeResult{Success: false, FailureReason: err.Error()}, nil
	}

	switch strings.ToLower(resp.TransactionStatus) {
	case "capture", "settlement":
		return ChargeResult{Success: true, Reference: resp.TransactionID}, nil
	default:
		reason := resp.StatusMessage
		if reason == "" {
			reason = resp.TransactionStatus
		}
		return ChargeResult{Success: false, Reference: resp.TransactionID, FailureReason: reason}, nil
	}
}
