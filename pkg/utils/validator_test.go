package utils

import "testing"

func TestValidateTemplateSerial(t *testing.T) {
	tests := []struct {
		serial  string
		wantErr bool
	}{
		{"1C25TAA", false},
		{"2K24LBB", false},
		{"6C99XZZ", false},
		{"", true},
		{"1c25taa", true},
		{"7C25TAA", true},  // form number out of range
		{"1A25TAA", true},  // neither coded nor uncoded
		{"1C25QAA", true},  // unknown category letter
		{"1C25TA", true},   // too short
		{"1C25TAAA", true}, // too long
	}

	for _, tt := range tests {
		err := ValidateTemplateSerial(tt.serial)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTemplateSerial(%q) error = %v, wantErr %v", tt.serial, err, tt.wantErr)
		}
	}
}

func TestValidateTaxID(t *testing.T) {
	tests := []struct {
		taxID   string
		wantErr bool
	}{
		{"0312345678", false},
		{"0312345678-001", false},
		{"031234567", true},
		{"0312345678-01", true},
		{"031234567a", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateTaxID(tt.taxID)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTaxID(%q) error = %v, wantErr %v", tt.taxID, err, tt.wantErr)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(1_500_000); err != nil {
		t.Errorf("ValidateAmount(1500000) = %v, want nil", err)
	}
	if err := ValidateAmount(0); err == nil {
		t.Error("ValidateAmount(0) = nil, want error")
	}
	if err := ValidateAmount(-100); err == nil {
		t.Error("ValidateAmount(-100) = nil, want error")
	}
}

func TestSanitizeString(t *testing.T) {
	got := SanitizeString("hóa đơn\x00 điều chỉnh\x1f")
	want := "hóa đơn điều chỉnh"
	if got != want {
		t.Errorf("SanitizeString() = %q, want %q", got, want)
	}
}
