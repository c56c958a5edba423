package signing

import (
	"errors"
	"testing"
)

func TestSortedByKeySortsAndLowercases(t *testing.T) {
	fields := map[string]string{
		"b": "2",
		"A": "1",
		"c": "Three",
	}

	got := string(SortedByKey(fields, ""))
	want := "a=1&b=2&c=three"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSortedByKeyFiltersByPrefix(t *testing.T) {
	fields := map[string]string{
		"onpay_amount":   "1000",
		"onpay_currency": "DKK",
		"unrelated":      "x",
	}

	got := string(SortedByKey(fields, "onpay_"))
	want := "onpay_amount=1000&onpay_currency=dkk"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExplicitOrderUsesGivenOrder(t *testing.T) {
	fields := map[string]string{"b": "2", "a": "1"}

	got, err := ExplicitOrder(fields, []string{"a", "b"}, ",")
	if err != nil {
		t.Fatalf("explicit order failed: %v", err)
	}
	if string(got) != "a=1,b=2" {
		t.Fatalf("expected %q, got %q", "a=1,b=2", string(got))
	}
}

func TestExplicitOrderKeepsValuesVerbatim(t *testing.T) {
	fields := map[string]string{"ORDER_NUMBER": "Cart-42", "PAYMENT_1_STATUS": "Completed"}

	got, err := ExplicitOrder(fields, []string{"ORDER_NUMBER", "PAYMENT_1_STATUS"}, ",")
	if err != nil {
		t.Fatalf("explicit order failed: %v", err)
	}
	if string(got) != "ORDER_NUMBER=Cart-42,PAYMENT_1_STATUS=Completed" {
		t.Fatalf("unexpected canonical form %q", string(got))
	}
}

func TestExplicitOrderFailsOnMissingField(t *testing.T) {
	fields := map[string]string{"a": "1"}

	_, err := ExplicitOrder(fields, []string{"a", "b"}, ",")
	if err == nil {
		t.Fatal("expected error for missing field")
	}

	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if missing.Field != "b" {
		t.Fatalf("expected missing field b, got %s", missing.Field)
	}
}

func TestExplicitOrderAllowsEmptyValue(t *testing.T) {
	fields := map[string]string{"a": ""}

	got, err := ExplicitOrder(fields, []string{"a"}, ",")
	if err != nil {
		t.Fatalf("explicit order failed: %v", err)
	}
	if string(got) != "a=" {
		t.Fatalf("expected %q, got %q", "a=", string(got))
	}
}
