package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/factory"
	"github.com/vibast-solutions/ms-go-gateways/app/gateway"
	"github.com/vibast-solutions/ms-go-gateways/app/mapper"
	"github.com/vibast-solutions/ms-go-gateways/app/service"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

type CheckoutController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *CheckoutController) ListGateways(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.ListGatewaysResponse{
		Gateways: c.checkoutService.Gateways(),
	})
}

func (c *CheckoutController) StartPayment(ctx echo.Context) error {
	req, err := types.NewStartPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	order, form, err := c.checkoutService.StartPayment(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, gateway.ErrSettingMissing):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGatewayUnsupported), errors.Is(err, service.ErrGatewayDisabled):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrGatewayCallFailed):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment form generation failed")
			return c.writeError(ctx, http.StatusBadGateway, "gateway call failed")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Start payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.PaymentFormResponse{
		Order:  mapper.OrderToResponse(order),
		Action: form.Action,
		Method: form.Method,
		Fields: form.Fields,
		HTML:   form.HTML(),
	})
}

func (c *CheckoutController) ContinueURL(ctx echo.Context) error {
	url, err := c.checkoutService.ContinueURL(ctx.Request().Context(), ctx.Param("gateway"), ctx.Param("cart"))
	return c.writeURL(ctx, url, err, "Continue URL resolution failed")
}

func (c *CheckoutController) CancelURL(ctx echo.Context) error {
	url, err := c.checkoutService.CancelURL(ctx.Request().Context(), ctx.Param("gateway"), ctx.Param("cart"))
	return c.writeURL(ctx, url, err, "Cancel URL resolution failed")
}

func (c *CheckoutController) writeURL(ctx echo.Context, url string, err error, logMessage string) error {
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrGatewayUnsupported), errors.Is(err, service.ErrGatewayDisabled):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, gateway.ErrSettingMissing):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}
	return ctx.Redirect(http.StatusFound, url)
}

// HandleCallback receives gateway webhooks. Rejected callbacks answer 400 so
// the gateway retries nothing it should not; ignored callbacks answer 200 so
// the gateway stops redelivering an event that changes nothing.
func (c *CheckoutController) HandleCallback(ctx echo.Context) error {
	req, err := gateway.NewCallbackRequest(ctx.Request())
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	cartNumber := strings.TrimSpace(ctx.Param("cart"))
	_, err = c.checkoutService.HandleCallback(ctx.Request().Context(), ctx.Param("gateway"), cartNumber, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCallbackIgnored):
			return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Callback ignored"})
		case errors.Is(err, service.ErrCallbackRejected), errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGatewayUnsupported), errors.Is(err, service.ErrGatewayDisabled):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle gateway callback failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Callback processed"})
}

func (c *CheckoutController) GetOrder(ctx echo.Context) error {
	req, err := types.NewOrderOperationRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.checkoutService.GetOrder(ctx.Request().Context(), req.CartNumber)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)})
}

func (c *CheckoutController) ListOrders(ctx echo.Context) error {
	req, err := types.NewListOrdersRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}

	orders, err := c.checkoutService.ListOrders(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List orders failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListOrdersResponse{Orders: mapper.OrdersToResponse(orders)})
}

func (c *CheckoutController) OrderStatus(ctx echo.Context) error {
	return c.runOrderOperation(ctx, c.checkoutService.OrderStatus, "Order status failed")
}

func (c *CheckoutController) CaptureOrder(ctx echo.Context) error {
	return c.runOrderOperation(ctx, c.checkoutService.CaptureOrder, "Capture order failed")
}

func (c *CheckoutController) RefundOrder(ctx echo.Context) error {
	return c.runOrderOperation(ctx, c.checkoutService.RefundOrder, "Refund order failed")
}

func (c *CheckoutController) CancelOrder(ctx echo.Context) error {
	return c.runOrderOperation(ctx, c.checkoutService.CancelOrder, "Cancel order failed")
}

type orderOperation func(ctx context.Context, cartNumber string) (*entity.Order, *types.ApiInfo, error)

func (c *CheckoutController) runOrderOperation(ctx echo.Context, op orderOperation, logMessage string) error {
	req, err := types.NewOrderOperationRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, info, err := op(ctx.Request().Context(), req.CartNumber)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrOperationNotSupported), errors.Is(err, gateway.ErrOperationNotSupported):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrGatewayUnsupported), errors.Is(err, service.ErrGatewayDisabled):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, gateway.ErrSettingMissing):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGatewayCallFailed):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
			return c.writeError(ctx, http.StatusBadGateway, "gateway call failed")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.OrderOperationResponse{
		Order:   mapper.OrderToResponse(order),
		ApiInfo: mapper.ApiInfoToResponse(info),
	})
}

func (c *CheckoutController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
