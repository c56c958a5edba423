package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/gateway"
	"github.com/vibast-solutions/ms-go-gateways/app/repository"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

const defaultListLimit = int32(100)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByCartNumber(ctx context.Context, cartNumber string) (*entity.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error)
}

type orderEventRepository interface {
	Create(ctx context.Context, event *entity.OrderEvent) error
}

type callbackRecordRepository interface {
	Create(ctx context.Context, record *entity.CallbackRecord) error
}

type gatewayProfileRepository interface {
	FindByGateway(ctx context.Context, gateway string) (*entity.GatewayProfile, error)
}

type CheckoutService struct {
	orderRepo    orderRepository
	eventRepo    orderEventRepository
	callbackRepo callbackRecordRepository
	profileRepo  gatewayProfileRepository
	gatewayReg   *gateway.Registry
	baseSettings map[string]gateway.Settings
}

func NewCheckoutService(
	orderRepo orderRepository,
	eventRepo orderEventRepository,
	callbackRepo callbackRecordRepository,
	profileRepo gatewayProfileRepository,
	gatewayReg *gateway.Registry,
	baseSettings map[string]map[string]string,
) *CheckoutService {
	base := make(map[string]gateway.Settings, len(baseSettings))
	for code, settings := range baseSettings {
		base[strings.ToLower(code)] = gateway.Settings(settings)
	}

	return &CheckoutService{
		orderRepo:    orderRepo,
		eventRepo:    eventRepo,
		callbackRepo: callbackRepo,
		profileRepo:  profileRepo,
		gatewayReg:   gatewayReg,
		baseSettings: base,
	}
}

// StartPayment creates (or, for a repeated cart number, reuses) the order and
// generates the gateway hand-off form. Repeating the call for the same cart is
// safe: the customer may reload the checkout page.
func (s *CheckoutService) StartPayment(ctx context.Context, req *types.StartPaymentRequest) (*entity.Order, *gateway.PaymentForm, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	g, err := s.gateway(req.Gateway)
	if err != nil {
		return nil, nil, err
	}

	settings, err := s.settingsFor(ctx, g, gateway.Settings(req.Settings))
	if err != nil {
		return nil, nil, err
	}

	order, err := s.orderRepo.FindByCartNumber(ctx, req.CartNumber)
	if err != nil {
		return nil, nil, err
	}
	if order != nil && order.Gateway != g.Code() {
		return nil, nil, fmt.Errorf("%w: cart %s already belongs to gateway %s", ErrInvalidRequest, order.CartNumber, order.Gateway)
	}

	now := time.Now().UTC()
	if order == nil {
		amount, err := req.DecimalAmount()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}

		order = &entity.Order{
			CartNumber:   req.CartNumber,
			Gateway:      g.Code(),
			AmountTotal:  amount,
			Currency:     req.Currency,
			PaymentState: int32(types.PaymentStateInitialized),
			Properties:   cloneProperties(req.Properties),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.orderRepo.Create(ctx, order); err != nil {
			if errors.Is(err, repository.ErrOrderAlreadyExists) {
				if order, err = s.orderRepo.FindByCartNumber(ctx, req.CartNumber); err != nil {
					return nil, nil, err
				}
				if order == nil {
					return nil, nil, ErrOrderNotFound
				}
			} else {
				return nil, nil, err
			}
		} else {
			_ = s.eventRepo.Create(ctx, &entity.OrderEvent{
				OrderID:   order.ID,
				EventType: "order_created",
				NewState:  order.PaymentState,
				CreatedAt: now,
			})
		}
	}

	urls := gateway.FormURLs{
		Continue:      req.ContinueURL,
		Cancel:        req.CancelURL,
		Callback:      req.CallbackURL,
		Communication: req.CommunicationURL,
	}
	form, err := g.GeneratePaymentForm(ctx, order, urls, settings)
	if err != nil {
		if errors.Is(err, gateway.ErrSettingMissing) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayCallFailed, err)
	}

	_ = s.eventRepo.Create(ctx, &entity.OrderEvent{
		OrderID:   order.ID,
		EventType: "payment_form_generated",
		NewState:  order.PaymentState,
		CreatedAt: time.Now().UTC(),
	})

	return order, form, nil
}

// ContinueURL resolves the storefront URL the customer lands on after the
// gateway reports success.
func (s *CheckoutService) ContinueURL(ctx context.Context, gatewayCode, cartNumber string) (string, error) {
	order, g, err := s.orderForGateway(ctx, gatewayCode, cartNumber)
	if err != nil {
		return "", err
	}

	settings, err := s.settingsFor(ctx, g, nil)
	if err != nil {
		return "", err
	}
	return g.ContinueURL(order, settings)
}

// CancelURL resolves the storefront URL for an abandoned payment.
func (s *CheckoutService) CancelURL(ctx context.Context, gatewayCode, cartNumber string) (string, error) {
	order, g, err := s.orderForGateway(ctx, gatewayCode, cartNumber)
	if err != nil {
		return "", err
	}

	settings, err := s.settingsFor(ctx, g, nil)
	if err != nil {
		return "", err
	}
	return g.CancelURL(order, settings)
}

func (s *CheckoutService) GetOrder(ctx context.Context, cartNumber string) (*entity.Order, error) {
	order, err := s.orderRepo.FindByCartNumber(ctx, strings.TrimSpace(cartNumber))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, req *types.ListOrdersRequest) ([]*entity.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.orderRepo.List(ctx, repository.OrderFilter{
		Gateway:      req.Gateway,
		HasState:     req.HasState,
		PaymentState: int32(req.PaymentState),
		Limit:        limit,
		Offset:       req.Offset,
	})
}

// Gateways describes every registered gateway and its API capabilities.
func (s *CheckoutService) Gateways() []*types.GatewayDescriptor {
	codes := s.gatewayReg.Codes()
	descriptors := make([]*types.GatewayDescriptor, 0, len(codes))
	for _, code := range codes {
		g, err := s.gatewayReg.Get(code)
		if err != nil {
			continue
		}
		descriptors = append(descriptors, &types.GatewayDescriptor{
			Code:         g.Code(),
			Capabilities: g.Capabilities().List(),
		})
	}
	return descriptors
}

func (s *CheckoutService) gateway(code string) (gateway.Gateway, error) {
	g, err := s.gatewayReg.Get(code)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}
	return g, nil
}

func (s *CheckoutService) orderForGateway(ctx context.Context, gatewayCode, cartNumber string) (*entity.Order, gateway.Gateway, error) {
	g, err := s.gateway(gatewayCode)
	if err != nil {
		return nil, nil, err
	}

	order, err := s.orderRepo.FindByCartNumber(ctx, strings.TrimSpace(cartNumber))
	if err != nil {
		return nil, nil, err
	}
	if order == nil || order.Gateway != g.Code() {
		return nil, nil, ErrOrderNotFound
	}
	return order, g, nil
}

// settingsFor layers environment baseline, merchant profile, and per-request
// overrides on top of the gateway defaults. A disabled profile blocks the
// gateway outright.
func (s *CheckoutService) settingsFor(ctx context.Context, g gateway.Gateway, overrides gateway.Settings) (gateway.Settings, error) {
	settings := g.DefaultSettings()
	if base, ok := s.baseSettings[g.Code()]; ok {
		settings = settings.Merge(base)
	}

	profile, err := s.profileRepo.FindByGateway(ctx, g.Code())
	if err != nil {
		return nil, err
	}
	if profile != nil {
		if !profile.Enabled {
			return nil, fmt.Errorf("%w: %s", ErrGatewayDisabled, g.Code())
		}
		settings = settings.Merge(gateway.Settings(profile.Settings))
	}

	if len(overrides) > 0 {
		settings = settings.Merge(overrides)
	}
	return settings, nil
}

func cloneProperties(properties map[string]string) map[string]string {
	if len(properties) == 0 {
		return nil
	}
	cloned := make(map[string]string, len(properties))
	for key, value := range properties {
		cloned[key] = value
	}
	return cloned
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
