package session

import (
	"context"
	"fmt"

	"github.com/nerrad567/horn-node/internal/infrastructure/config"
	"github.com/nerrad567/horn-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/horn-node/internal/infrastructure/mqttv5"
)

// Transport names accepted by Open.
const (
	TransportMQTT     = "mqtt"
	TransportMQTTv5   = "mqttv5"
	TransportLoopback = "loopback"
)

// Deps carries what Open needs beyond the session Config.
type Deps struct {
	// Bus is the broker configuration used by the MQTT transports.
	Bus config.BusConfig
	// Loopback is the bus joined by the loopback transport. A new bus is
	// created when nil.
	Loopback *Bus
	Logger   Logger
}

// Open opens a session on the transport named by deps.Bus.Transport.
//
// When cfg has a connect endpoint it selects the broker; otherwise the
// broker from deps.Bus is used.
func Open(ctx context.Context, cfg Config, deps Deps) (Session, error) {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	busCfg := deps.Bus
	busCfg.Mode = cfg.Mode.String()

	switch busCfg.Transport {
	case TransportLoopback:
		bus := deps.Loopback
		if bus == nil {
			bus = NewBus()
		}
		logger.Info("session opened", "transport", TransportLoopback, "mode", busCfg.Mode)
		return bus.Session(), nil

	case TransportMQTT, "":
		brokerURL := mqtt.BrokerURL(busCfg)
		if cfg.HasConnect() {
			u, err := BrokerURL(cfg.Connect)
			if err != nil {
				return nil, err
			}
			brokerURL = u
		}
		client, err := mqtt.Connect(busCfg, brokerURL)
		if err != nil {
			return nil, fmt.Errorf("opening mqtt session: %w", err)
		}
		client.SetLogger(logger)
		logger.Info("session opened", "transport", TransportMQTT, "broker", brokerURL, "mode", busCfg.Mode)
		return &mqttSession{client: client, qos: byte(busCfg.QoS)}, nil

	case TransportMQTTv5:
		brokerURL := mqtt.BrokerURL(busCfg)
		if cfg.HasConnect() {
			u, err := BrokerURL(cfg.Connect)
			if err != nil {
				return nil, err
			}
			brokerURL = u
		}
		client, err := mqttv5.Connect(ctx, busCfg, brokerURL)
		if err != nil {
			return nil, fmt.Errorf("opening mqttv5 session: %w", err)
		}
		client.SetLogger(logger)
		logger.Info("session opened", "transport", TransportMQTTv5, "broker", brokerURL, "mode", busCfg.Mode)
		return &mqttv5Session{client: client, qos: byte(busCfg.QoS)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, busCfg.Transport)
	}
}
