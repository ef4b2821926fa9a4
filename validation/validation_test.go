package validation

import "testing"

func TestRequiredAndChoice(t *testing.T) {
	v := Violations{}
	Required("username", "  ", v)
	Required("email", "a@b.c", v)
	Choice("method", "WIRE", []string{"CASH", "CARD", "TRANSFER"}, v)
	Choice("status", "scheduled", []string{"scheduled", "completed", "cancelled"}, v)
	if v["username"] != "required" {
		t.Errorf("username: got %q", v["username"])
	}
	if _, ok := v["email"]; ok {
		t.Error("email should pass")
	}
	if v["method"] != "invalid_choice" {
		t.Errorf("method: got %q", v["method"])
	}
	if _, ok := v["status"]; ok {
		t.Error("status should pass")
	}
}

func TestDate(t *testing.T) {
	v := Violations{}
	d := Date("start", "2024-06-01", v)
	if !v.Empty() {
		t.Fatalf("unexpected violations %v", v)
	}
	if d.Year() != 2024 || d.Month() != 6 {
		t.Fatalf("bad parse: %v", d)
	}
	Date("end", "junk", v)
	if v["end"] != "invalid_date" {
		t.Errorf("end: got %q", v["end"])
	}
}

func TestNumericValidators(t *testing.T) {
	v := Violations{}
	PositiveFloat("amount_ils", 0, v)
	PositiveInt("duration_minutes", -5, v)
	MinLength("password", "abc", 4, v)
	if v["amount_ils"] != "must_be_positive" || v["duration_minutes"] != "must_be_positive" {
		t.Errorf("numeric: %v", v)
	}
	if v["password"] != "too_short" {
		t.Errorf("password: %v", v)
	}
}
