package validator

import "testing"

type contactRequest struct {
	Phone  string `json:"phone" validate:"required,leadphone"`
	Status string `json:"status" validate:"omitempty,color"`
}

func TestLeadPhoneTag(t *testing.T) {
	val := New()
	if err := val.RegisterEnum("color", func(s string) bool { return s == "red" || s == "blue" }); err != nil {
		t.Fatalf("register enum: %v", err)
	}

	if err := val.Struct(contactRequest{Phone: "(11) 98765-4321"}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	err := val.Struct(contactRequest{Phone: "abc", Status: "green"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	fields := FieldErrors(err)
	if fields["phone"] != TagLeadPhone {
		t.Errorf("expected phone to fail %s, got %q", TagLeadPhone, fields["phone"])
	}
	if fields["status"] != "color" {
		t.Errorf("expected status to fail enum tag, got %q", fields["status"])
	}
}
