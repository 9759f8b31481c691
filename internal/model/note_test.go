package model

import "testing"

func TestParseNoteCurrentShape(t *testing.T) {
	raw := `{"method":"bank","bank":{"bank_name":"First National","account_number":"12345678"},"hold":false}`
	n := ParseNote(raw)
	if n.Method != "bank" {
		t.Fatalf("method = %q, want bank", n.Method)
	}
	if n.Bank == nil || n.Bank.AccountNumber != "12345678" {
		t.Fatalf("bank = %+v", n.Bank)
	}
	if n.Hold {
		t.Fatal("hold should be false")
	}
}

func TestParseNoteLegacyNestedMeta(t *testing.T) {
	raw := `{"method":"USDT","hold":true,"meta":{"address":"TXabcdef123456"}}`
	n := ParseNote(raw)
	if n.Method != "usdt" {
		t.Fatalf("method = %q, want usdt", n.Method)
	}
	if !n.Hold {
		t.Fatal("hold flag lost")
	}
	if n.Address != "TXabcdef123456" {
		t.Fatalf("address = %q", n.Address)
	}
}

func TestParseNoteLegacyUserProof(t *testing.T) {
	n := ParseNote(`{"type":"user_proof","file":"receipt-77.png"}`)
	if n.ProofFile != "receipt-77.png" {
		t.Fatalf("proof_file = %q", n.ProofFile)
	}
}

func TestParseNoteLegacyFlatBank(t *testing.T) {
	raw := `{"method":"bank","bank_name":"Old Trust","account_name":"J Doe","account_number":"99887766","routing_or_swift":"OLDTUS33"}`
	n := ParseNote(raw)
	if n.Bank == nil {
		t.Fatal("flat bank fields not lifted")
	}
	if n.Bank.BankName != "Old Trust" || n.Bank.AccountNumber != "99887766" {
		t.Fatalf("bank = %+v", n.Bank)
	}
}

func TestParseNoteFreeText(t *testing.T) {
	n := ParseNote("manual adjustment per ticket 4411")
	if n.Text != "manual adjustment per ticket 4411" {
		t.Fatalf("text = %q", n.Text)
	}
}

func TestParseNoteEmpty(t *testing.T) {
	if n := ParseNote("  "); n != (RequestNote{}) {
		t.Fatalf("empty note parsed as %+v", n)
	}
}

func TestParseNoteRoundTrip(t *testing.T) {
	orig := RequestNote{
		Method: "bank",
		Bank:   &BankDetails{BankName: "First National", AccountNumber: "12345678"},
		Hold:   true,
		Text:   "legacy import",
	}
	got := ParseNote(orig.Encode())
	if got.Method != orig.Method || got.Hold != orig.Hold || got.Text != orig.Text {
		t.Fatalf("round trip = %+v", got)
	}
	if got.Bank == nil || *got.Bank != *orig.Bank {
		t.Fatalf("bank round trip = %+v", got.Bank)
	}
}

func TestMaskedDestination(t *testing.T) {
	cases := []struct {
		name string
		note RequestNote
		want string
	}{
		{"bank", RequestNote{Method: "bank", Bank: &BankDetails{AccountNumber: "12345678"}}, "bank *****5678"},
		{"wallet", RequestNote{Method: "usdt", Address: "TXabcdef123456"}, "usdt wallet *****3456"},
		{"method only", RequestNote{Method: "paypal"}, "paypal"},
		{"short address", RequestNote{Method: "btc", Address: "ab"}, "btc wallet *****ab"},
		{"empty", RequestNote{}, ""},
	}
	for _, tc := range cases {
		if got := tc.note.MaskedDestination(); got != tc.want {
			t.Errorf("%s: masked = %q, want %q", tc.name, got, tc.want)
		}
	}
}
