package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

var probeCmd = &cobra.Command{
	Use:   "probe [cart-number]",
	Short: "Probe the gateway for one order's current state",
	Long:  "Ask the order's gateway for its authoritative transaction state and fold the answer into the stored order. One-shot; exits after the probe.",
	Args:  cobra.ExactArgs(1),
	Run:   runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(_ *cobra.Command, args []string) {
	_, checkoutService, cleanup := mustCreateCheckoutService()
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cartNumber := args[0]
	start := time.Now()
	order, info, err := checkoutService.OrderStatus(ctx, cartNumber)
	latency := time.Since(start)

	if err != nil {
		logrus.WithError(err).
			WithField("cart_number", cartNumber).
			WithField("latency", latency.String()).
			Fatal("probe_failed")
	}

	logrus.WithFields(logrus.Fields{
		"cart_number":    order.CartNumber,
		"gateway":        order.Gateway,
		"payment_state":  types.PaymentState(order.PaymentState).String(),
		"transaction_id": info.TransactionID,
		"latency":        latency.String(),
	}).Info("probe_completed")
}
