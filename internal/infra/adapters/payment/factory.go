package payment

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/config"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/adapter"
)

// Factory resolves a gateway identifier to its adapter. The provider set is
// fixed at deployment time, so this is a closed switch over instances built
// once at startup, not a plugin registry.
type Factory struct {
	flow        *FlowGateway
	paypal      *PayPalGateway
	mercadopago *MercadoPagoGateway
	nowpayments *NOWPaymentsGateway
}

func NewFactory(cfg config.PaymentConfig, logger *zerolog.Logger) *Factory {
	return &Factory{
		flow:        NewFlowGateway(cfg.Flow, cfg.CallTimeout, logger),
		paypal:      NewPayPalGateway(cfg.PayPal, cfg.CallTimeout, logger),
		mercadopago: NewMercadoPagoGateway(cfg.MercadoPago, cfg.CallTimeout, logger),
		nowpayments: NewNOWPaymentsGateway(cfg.NOWPayments, cfg.CallTimeout, logger),
	}
}

func (f *Factory) Gateway(gw model.Gateway) (adapter.PaymentGateway, error) {
	switch gw {
	case model.GatewayFlow:
		return f.flow, nil
	case model.GatewayPayPal:
		return f.paypal, nil
	case model.GatewayMercadoPago:
		return f.mercadopago, nil
	case model.GatewayNOWPayments:
		return f.nowpayments, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedGateway, gw)
	}
}
