package domain

import (
	"testing"

	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestWarrantyDecisionOnlyFromPending(t *testing.T) {
	w, err := NewWarranty(uuid.New(), "  wrong number  ", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.ReturnReason != "wrong number" {
		t.Fatalf("expected trimmed reason, got %q", w.ReturnReason)
	}

	analyst := uuid.New()
	if err := w.Decide(WarrantyRejected, analyst, "duplicate", testNow); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if w.AnalyzedBy == nil || *w.AnalyzedBy != analyst || w.AnalysisNotes == nil {
		t.Fatal("expected analyst and notes to be recorded")
	}
	if !w.Status.Terminal() {
		t.Fatal("rejected must be terminal")
	}

	if err := w.Decide(WarrantyWaitingReplacement, analyst, "", testNow); !apperr.Is(err, apperr.KindBusinessRule) {
		t.Fatalf("expected second decision to fail, got %v", err)
	}
}

func TestWarrantyReplacementRequiresApproval(t *testing.T) {
	w, _ := NewWarranty(uuid.New(), "no answer", testNow)
	if err := w.MarkReplaced(uuid.New(), testNow); !apperr.Is(err, apperr.KindBusinessRule) {
		t.Fatalf("expected pending claim to refuse replacement, got %v", err)
	}

	w.Status = WarrantyApproved
	newLead := uuid.New()
	if err := w.MarkReplaced(newLead, testNow); err != nil {
		t.Fatalf("approved claim should accept a replacement: %v", err)
	}
	if w.Status != WarrantyReplaced || w.NewLeadID == nil || *w.NewLeadID != newLead || w.ReplacedAt == nil {
		t.Fatalf("unexpected warranty after replacement: %+v", w)
	}
}

func TestNewWarrantyRequiresReason(t *testing.T) {
	if _, err := NewWarranty(uuid.New(), "   ", testNow); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWarrantyStatusMirrorsAssignment(t *testing.T) {
	if WarrantyWaitingReplacement.AssignmentStatus() != AssignmentWarrantyWaitingReplacement {
		t.Fatal("unexpected mirror for waiting_replacement")
	}
	if !AssignmentStatus("warranty_replaced").Valid() || AssignmentStatus("closed").Valid() {
		t.Fatal("unexpected enum membership")
	}
}
