// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	UserID string  `validate:"required"`
	TopK   int     `validate:"omitempty,min=1,max=100"`
	Rating float64 `validate:"omitempty,gte=1,lte=5"`
	Mode   string  `validate:"omitempty,oneof=brief detailed"`
}

func TestValidateStructPasses(t *testing.T) {
	t.Parallel()

	req := sampleRequest{UserID: "u1", TopK: 10, Rating: 4.5, Mode: "brief"}
	if verr := ValidateStruct(&req); verr != nil {
		t.Fatalf("ValidateStruct: %v", verr)
	}
}

func TestValidateStructFieldErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      sampleRequest
		wantText string
	}{
		{"missing user", sampleRequest{TopK: 5}, "UserID is required"},
		{"k too large", sampleRequest{UserID: "u", TopK: 500}, "TopK must be at most 100"},
		{"rating too low", sampleRequest{UserID: "u", Rating: 0.5}, "Rating must be greater than or equal to 1"},
		{"bad mode", sampleRequest{UserID: "u", Mode: "verbose"}, "Mode must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verr := ValidateStruct(&tt.req)
			if verr == nil {
				t.Fatal("ValidateStruct passed, want error")
			}
			if !strings.Contains(verr.Error(), tt.wantText) {
				t.Errorf("error %q does not contain %q", verr.Error(), tt.wantText)
			}
			if len(verr.Fields()) == 0 {
				t.Error("no field details")
			}
		})
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&sampleRequest{TopK: 500, Rating: 9})
	if verr == nil {
		t.Fatal("ValidateStruct passed, want errors")
	}
	if got := len(verr.Fields()); got != 3 {
		t.Errorf("got %d field errors, want 3: %v", got, verr)
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator returned different instances")
	}
}
