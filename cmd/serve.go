package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-gateways/app/controller"
	"github.com/vibast-solutions/ms-go-gateways/app/gateway"
	"github.com/vibast-solutions/ms-go-gateways/app/repository"
	"github.com/vibast-solutions/ms-go-gateways/app/service"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
	"github.com/vibast-solutions/ms-go-gateways/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for checkout forms, gateway callbacks, and order operations.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, checkoutService, cleanup := mustCreateCheckoutService()
	defer cleanup()

	checkoutController := controller.NewCheckoutController(checkoutService)
	e := setupHTTPServer(checkoutController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(checkoutController *controller.CheckoutController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	// Gateway callbacks and storefront redirects carry no request id, so the
	// requirement applies to the operator-facing routes only.
	e.GET("/health", checkoutController.Health)
	e.GET("/gateways", checkoutController.ListGateways)

	checkout := e.Group("/checkout")
	checkout.POST("/:gateway/form", checkoutController.StartPayment)
	checkout.GET("/:gateway/continue/:cart", checkoutController.ContinueURL)
	checkout.GET("/:gateway/cancel/:cart", checkoutController.CancelURL)

	callbacks := e.Group("/callbacks")
	callbacks.POST("/:gateway", checkoutController.HandleCallback)
	callbacks.POST("/:gateway/:cart", checkoutController.HandleCallback)

	orders := e.Group("/orders", requireRequestID())
	orders.GET("", checkoutController.ListOrders)
	orders.GET("/:cart", checkoutController.GetOrder)
	orders.GET("/:cart/status", checkoutController.OrderStatus)
	orders.POST("/:cart/capture", checkoutController.CaptureOrder)
	orders.POST("/:cart/refund", checkoutController.RefundOrder)
	orders.POST("/:cart/cancel", checkoutController.CancelOrder)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func mustCreateCheckoutService() (*config.Config, *service.CheckoutService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogging(cfg)

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	orderRepo := repository.NewOrderRepository(db)
	eventRepo := repository.NewOrderEventRepository(db)
	callbackRepo := repository.NewCallbackRecordRepository(db)
	profileRepo := repository.NewGatewayProfileRepository(db)

	timeout := cfg.Gateways.HTTPTimeout
	gatewayRegistry := gateway.NewRegistry(
		gateway.NewStripeGateway(timeout),
		gateway.NewAuthorizeNetGateway(timeout),
		gateway.NewKlarnaGateway(timeout),
		gateway.NewPaynovaGateway(timeout),
		gateway.NewCyberSourceGateway(),
		gateway.NewOnPayGateway(),
		gateway.NewInvoiceGateway(),
	)

	checkoutService := service.NewCheckoutService(
		orderRepo,
		eventRepo,
		callbackRepo,
		profileRepo,
		gatewayRegistry,
		cfg.Gateways.Settings,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, checkoutService, cleanup
}

func configureLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
