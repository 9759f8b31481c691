package model

import (
	"encoding/json"
	"strings"
)

// BankDetails is the payout destination for bank withdrawals.
type BankDetails struct {
	BankName       string `json:"bank_name,omitempty"`
	AccountName    string `json:"account_name,omitempty"`
	AccountNumber  string `json:"account_number,omitempty"`
	RoutingOrSwift string `json:"routing_or_swift,omitempty"`
	Country        string `json:"country,omitempty"`
	USAccountType  string `json:"us_account_type,omitempty"`
	USSSN          string `json:"us_ssn,omitempty"`
}

// RequestNote is the structured side channel on a MoneyRequest: payout
// method and metadata for withdrawals, proof reference for deposits,
// plus the hold/refunded accounting flags. Historical rows were stored
// as ad hoc JSON with several shapes, so parsing stays permissive and
// encoding always emits the current shape.
type RequestNote struct {
	Method    string       `json:"method,omitempty"`
	Bank      *BankDetails `json:"bank,omitempty"`
	Address   string       `json:"address,omitempty"`
	ProofFile string       `json:"proof_file,omitempty"`
	Hold      bool         `json:"hold"`
	Refunded  bool         `json:"refunded,omitempty"`
	Text      string       `json:"text,omitempty"`
}

// IsBank reports whether the note describes a bank payout.
func (n RequestNote) IsBank() bool { return n.Method == "bank" }

// MaskedDestination renders the payout target with only the last four
// characters visible, for listings.
func (n RequestNote) MaskedDestination() string {
	switch {
	case n.IsBank() && n.Bank != nil && n.Bank.AccountNumber != "":
		return "bank *****" + lastN(n.Bank.AccountNumber, 4)
	case n.Address != "":
		return n.Method + " wallet *****" + lastN(n.Address, 4)
	case n.Method != "":
		return n.Method
	default:
		return ""
	}
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// legacyNote covers every historical note layout at once: the nested
// {"method","meta":{...},"hold"} shape, the deposit proof shape
// {"type":"user_proof","file":...}, and flat bank fields on the top
// level.
type legacyNote struct {
	Method   string          `json:"method"`
	Hold     *bool           `json:"hold"`
	Refunded *bool           `json:"refunded"`
	Type     string          `json:"type"`
	File     string          `json:"file"`
	Address  string          `json:"address"`
	Text     string          `json:"text"`
	Meta     json.RawMessage `json:"meta"`
	Bank     *BankDetails    `json:"bank"`

	BankName       string `json:"bank_name"`
	AccountName    string `json:"account_name"`
	AccountNumber  string `json:"account_number"`
	RoutingOrSwift string `json:"routing_or_swift"`
}

type legacyMeta struct {
	Address string       `json:"address"`
	Bank    *BankDetails `json:"bank"`
}

// ParseNote decodes any historical note payload. Non-JSON input is kept
// verbatim as free text; parsing never fails.
func ParseNote(raw string) RequestNote {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RequestNote{}
	}
	var current RequestNote
	if err := json.Unmarshal([]byte(raw), &current); err == nil &&
		(current.Method != "" || current.Bank != nil || current.Address != "" || current.ProofFile != "" || current.Text != "") {
		return current
	}
	var legacy legacyNote
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return RequestNote{Text: raw}
	}
	out := RequestNote{Method: strings.ToLower(strings.TrimSpace(legacy.Method)), Text: legacy.Text}
	if legacy.Hold != nil {
		out.Hold = *legacy.Hold
	}
	if legacy.Refunded != nil {
		out.Refunded = *legacy.Refunded
	}
	if legacy.Type == "user_proof" && legacy.File != "" {
		out.ProofFile = legacy.File
	}
	out.Address = legacy.Address
	out.Bank = legacy.Bank
	if len(legacy.Meta) > 0 {
		var meta legacyMeta
		if err := json.Unmarshal(legacy.Meta, &meta); err == nil {
			if out.Address == "" {
				out.Address = meta.Address
			}
			if out.Bank == nil {
				out.Bank = meta.Bank
			}
		}
	}
	if out.Bank == nil && (legacy.BankName != "" || legacy.AccountNumber != "") {
		out.Bank = &BankDetails{
			BankName:       legacy.BankName,
			AccountName:    legacy.AccountName,
			AccountNumber:  legacy.AccountNumber,
			RoutingOrSwift: legacy.RoutingOrSwift,
		}
	}
	return out
}

// Encode renders the note in the current canonical shape.
func (n RequestNote) Encode() string {
	b, err := json.Marshal(n)
	if err != nil {
		return "{}"
	}
	return string(b)
}
