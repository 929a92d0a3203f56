package entity

import (
	"encoding/json"
	"testing"
)

func TestInvoiceNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     InvoiceNumber
		assigned bool
		wantErr  bool
	}{
		{"numeric", `5`, 5, true, false},
		{"numeric zero", `0`, 0, false, false},
		{"string", `"5"`, 5, true, false},
		{"string zero", `"0"`, 0, false, false},
		{"empty string", `""`, 0, false, false},
		{"null", `null`, 0, false, false},
		{"large", `1048576`, 1048576, true, false},
		{"garbage", `"abc"`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n InvoiceNumber
			err := json.Unmarshal([]byte(tt.input), &n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if n != tt.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.input, n, tt.want)
			}
			if n.Assigned() != tt.assigned {
				t.Errorf("Assigned() = %v, want %v", n.Assigned(), tt.assigned)
			}
		})
	}
}

func TestInvoiceNumber_InStruct(t *testing.T) {
	// Upstream list endpoints deliver the number as a string, detail
	// endpoints as a number. Both must decode into the same field.
	var a, b Invoice
	if err := json.Unmarshal([]byte(`{"id":"x","invoice_number":"0000007"}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"id":"x","invoice_number":7}`), &b); err != nil {
		t.Fatal(err)
	}
	if a.InvoiceNumber != 7 || b.InvoiceNumber != 7 {
		t.Errorf("got %d and %d, want 7 and 7", a.InvoiceNumber, b.InvoiceNumber)
	}
}

func TestInvoiceType_Parse(t *testing.T) {
	for _, tt := range []struct {
		name       string
		typ        InvoiceType
		derivative bool
	}{
		{"ORIGINAL", TypeOriginal, false},
		{"ADJUSTMENT", TypeAdjustment, true},
		{"REPLACEMENT", TypeReplacement, true},
		{"CANCELLATION", TypeCancellation, true},
		{"EXPLANATION", TypeExplanation, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInvoiceType(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.typ {
				t.Errorf("ParseInvoiceType(%s) = %v, want %v", tt.name, got, tt.typ)
			}
			if got.IsDerivative() != tt.derivative {
				t.Errorf("IsDerivative() = %v, want %v", got.IsDerivative(), tt.derivative)
			}
		})
	}

	if _, err := ParseInvoiceType("BOGUS"); err == nil {
		t.Error("ParseInvoiceType(BOGUS) should fail")
	}
}
