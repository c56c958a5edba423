package types

import "testing"

func TestPaymentStateString(t *testing.T) {
	cases := map[PaymentState]string{
		PaymentStateInitialized:           "initialized",
		PaymentStatePendingExternalSystem: "pending_external_system",
		PaymentStateAuthorized:            "authorized",
		PaymentStateCaptured:              "captured",
		PaymentStateRefunded:              "refunded",
		PaymentStateCancelled:             "cancelled",
		PaymentState(99):                  "initialized",
	}

	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("state %d: expected %s, got %s", state, want, got)
		}
	}
}

func TestIsValidPaymentState(t *testing.T) {
	if !IsValidPaymentState(PaymentStateCaptured) {
		t.Fatal("expected captured to be valid")
	}
	if IsValidPaymentState(PaymentState(7)) {
		t.Fatal("expected 7 to be invalid")
	}
}

func TestPaymentStateRankOrdersLifecycle(t *testing.T) {
	ordered := []PaymentState{
		PaymentStateInitialized,
		PaymentStatePendingExternalSystem,
		PaymentStateAuthorized,
		PaymentStateCaptured,
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Fatalf("expected %s to rank above %s", ordered[i], ordered[i-1])
		}
	}

	if PaymentStateRefunded.Rank() != PaymentStateCancelled.Rank() {
		t.Fatal("expected refunded and cancelled to be terminal peers")
	}
	if PaymentStateRefunded.Rank() <= PaymentStateCaptured.Rank() {
		t.Fatal("expected terminal states to rank above captured")
	}
}
