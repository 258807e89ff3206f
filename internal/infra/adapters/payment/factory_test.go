//go:build !integration

package payment

import (
	"errors"
	"testing"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/config"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
)

func TestFactory_Gateway(t *testing.T) {
	f := NewFactory(config.PaymentConfig{}, newTestLogger())

	t.Run("resolves every supported gateway", func(t *testing.T) {
		for _, gw := range []model.Gateway{
			model.GatewayFlow,
			model.GatewayPayPal,
			model.GatewayMercadoPago,
			model.GatewayNOWPayments,
		} {
			got, err := f.Gateway(gw)
			if err != nil {
				t.Fatalf("Gateway(%q) failed: %v", gw, err)
			}
			if got.Name() != gw {
				t.Errorf("Gateway(%q).Name() = %q", gw, got.Name())
			}
		}
	})

	t.Run("rejects unknown gateways", func(t *testing.T) {
		for _, gw := range []model.Gateway{"stripe", "", "FLOW"} {
			if _, err := f.Gateway(gw); !errors.Is(err, domain.ErrUnsupportedGateway) {
				t.Errorf("Gateway(%q) err = %v, want ErrUnsupportedGateway", gw, err)
			}
		}
	})
}
