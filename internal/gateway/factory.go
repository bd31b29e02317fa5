package gateway

import "github.com/veilscan/shielded-stats-pipeline/internal/config"

// New selects the single gateway implementation for this deployment.
// Everything downstream depends on GatewayInterface only.
func New(cfg *config.GatewayConfig) GatewayInterface {
	if config.GatewayMode(cfg.Mode) == config.GatewayModeRemote {
		return NewRemoteGateway(cfg)
	}
	return NewSimulator()
}
