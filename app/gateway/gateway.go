package gateway

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

var (
	ErrGatewayNotSupported   = errors.New("gateway is not supported")
	ErrOperationNotSupported = errors.New("operation is not supported by gateway")

	// ErrCallbackUntrusted marks a callback whose signature did not verify.
	// It is a warning condition, never a fatal one: webhooks can be replayed
	// or forged and the order must simply not advance.
	ErrCallbackUntrusted = errors.New("callback signature rejected")

	// ErrCallbackIgnored marks a verified callback that carries no payment
	// fact for the order. Callers treat it as "no state change".
	ErrCallbackIgnored = errors.New("callback does not change payment state")
)

type Capability string

const (
	CapabilityStatus  Capability = "status"
	CapabilityCapture Capability = "capture"
	CapabilityRefund  Capability = "refund"
	CapabilityCancel  Capability = "cancel"
)

type CapabilitySet map[Capability]bool

func NewCapabilitySet(capabilities ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(capabilities))
	for _, capability := range capabilities {
		set[capability] = true
	}
	return set
}

func (s CapabilitySet) Has(capability Capability) bool {
	return s[capability]
}

func (s CapabilitySet) List() []string {
	items := make([]string, 0, len(s))
	for capability, ok := range s {
		if ok {
			items = append(items, string(capability))
		}
	}
	sort.Strings(items)
	return items
}

// FormURLs are the host-platform URLs threaded into form generation.
type FormURLs struct {
	Continue      string
	Cancel        string
	Callback      string
	Communication string
}

// PaymentForm is the hosted-payment-page hand-off: a target URL plus the
// hidden input fields the customer's browser posts to it.
type PaymentForm struct {
	Action string
	Method string
	Fields map[string]string
}

// HTML renders the form in the hosting platform's hidden-input convention.
func (f *PaymentForm) HTML() string {
	method := f.Method
	if method == "" {
		method = "POST"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<form method=%q action=%q>`, method, f.Action)
	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, `<input type="hidden" name=%q value=%q />`,
			html.EscapeString(name), html.EscapeString(f.Fields[name]))
	}
	b.WriteString(`</form>`)
	return b.String()
}

// Gateway is the contract every payment gateway integration implements.
// Implementations never let gateway SDK or transport errors escape raw: every
// operation returns either a typed result or a wrapped error, and callback
// trust failures are reported as ErrCallbackUntrusted / ErrCallbackIgnored.
type Gateway interface {
	Code() string
	DefaultSettings() Settings

	// Capabilities reports which optional API operations the gateway
	// supports. Callers query the set before invoking Status, Capture,
	// Refund, or Cancel.
	Capabilities() CapabilitySet

	GeneratePaymentForm(ctx context.Context, order *entity.Order, urls FormURLs, settings Settings) (*PaymentForm, error)
	ContinueURL(order *entity.Order, settings Settings) (string, error)
	CancelURL(order *entity.Order, settings Settings) (string, error)

	// IdentifyCart extracts the merchant cart number from a webhook whose
	// URL does not carry it. This deliberately runs part of callback
	// processing (parse + verify) before the order is known; the request's
	// webhook cache keeps that work from repeating in ProcessCallback.
	IdentifyCart(ctx context.Context, req *CallbackRequest, settings Settings) (string, error)

	ProcessCallback(ctx context.Context, order *entity.Order, req *CallbackRequest, settings Settings) (*types.CallbackInfo, error)

	Status(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error)
	Capture(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error)
	Refund(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error)
	Cancel(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error)
}

// UnsupportedOperations is embedded by gateways that expose no synchronous
// API surface; each operation reports ErrOperationNotSupported.
type UnsupportedOperations struct{}

func (UnsupportedOperations) Status(context.Context, *entity.Order, Settings) (*types.ApiInfo, error) {
	return nil, ErrOperationNotSupported
}

func (UnsupportedOperations) Capture(context.Context, *entity.Order, Settings) (*types.ApiInfo, error) {
	return nil, ErrOperationNotSupported
}

func (UnsupportedOperations) Refund(context.Context, *entity.Order, Settings) (*types.ApiInfo, error) {
	return nil, ErrOperationNotSupported
}

func (UnsupportedOperations) Cancel(context.Context, *entity.Order, Settings) (*types.ApiInfo, error) {
	return nil, ErrOperationNotSupported
}

type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	items := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		items[g.Code()] = g
	}
	return &Registry{gateways: items}
}

func (r *Registry) Get(code string) (Gateway, error) {
	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, ErrGatewayNotSupported
	}
	return g, nil
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.gateways))
	for code := range r.gateways {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
