package http

import (
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
)

type entryRequest struct {
	AccountID      int64   `json:"account_id" validate:"required,gt=0"`
	Description    string  `json:"description" validate:"max=255"`
	Debit          float64 `json:"debit" validate:"gte=0"`
	Credit         float64 `json:"credit" validate:"gte=0"`
	ThirdPartyType *string `json:"third_party_type,omitempty"`
	ThirdPartyID   *int64  `json:"third_party_id,omitempty"`
}

type createTransactionRequest struct {
	Date          string         `json:"date" validate:"required,datetime=2006-01-02"`
	Description   string         `json:"description" validate:"required,max=255"`
	ReferenceType string         `json:"reference_type" validate:"omitempty,oneof=INVOICE PAYMENT MANUAL CLOSING"`
	ReferenceID   int64          `json:"reference_id" validate:"gte=0"`
	Entries       []entryRequest `json:"entries" validate:"omitempty,dive"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type entryResponse struct {
	ID          int64   `json:"id"`
	AccountID   int64   `json:"account_id"`
	Description string  `json:"description"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
}

type transactionResponse struct {
	ID          int64           `json:"id"`
	Number      int64           `json:"number"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	ReferenceID int64           `json:"reference_id,omitempty"`
	Status      string          `json:"status"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
	Entries     []entryResponse `json:"entries"`
}

func newTransactionResponse(tx ledger.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          tx.ID,
		Number:      tx.Number,
		Date:        tx.Date.Format("2006-01-02"),
		Description: tx.Description,
		Reference:   string(tx.Reference.Kind),
		ReferenceID: tx.Reference.ID,
		Status:      string(tx.Status),
		PostedAt:    tx.PostedAt,
	}
	for _, e := range tx.Entries {
		resp.Entries = append(resp.Entries, entryResponse{
			ID:          e.ID,
			AccountID:   e.AccountID,
			Description: e.Description,
			Debit:       e.Debit,
			Credit:      e.Credit,
		})
	}
	return resp
}

func (req entryRequest) toInput() ledger.EntryInput {
	return ledger.EntryInput{
		AccountID:      req.AccountID,
		Description:    req.Description,
		Debit:          req.Debit,
		Credit:         req.Credit,
		ThirdPartyType: req.ThirdPartyType,
		ThirdPartyID:   req.ThirdPartyID,
	}
}
