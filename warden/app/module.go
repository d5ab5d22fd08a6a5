package app

import (
	"go.uber.org/fx"

	"github.com/nodepulse/nodepulse/config"
	"github.com/nodepulse/nodepulse/warden/eventlog"
	k8sadapter "github.com/nodepulse/nodepulse/warden/k8s_adapter"
	"github.com/nodepulse/nodepulse/warden/rest"
	"github.com/nodepulse/nodepulse/warden/risk"
	"github.com/nodepulse/nodepulse/warden/service"
	"github.com/nodepulse/nodepulse/warden/simulator"
	"github.com/nodepulse/nodepulse/warden/telemetry"
)

// ConfigModule creates an Fx module that provides configuration structs
func ConfigModule(cfg config.WardenConfig) (fx.Option, error) {
	return fx.Options(
		fx.Provide(func() config.WardenConfig {
			return cfg
		}),
		fx.Provide(func(wardenCfg config.WardenConfig) config.ServerConfig {
			return wardenCfg.Server
		}),
		fx.Provide(func(wardenCfg config.WardenConfig) config.K8SConfig {
			return wardenCfg.K8S
		}),
		fx.Provide(func(wardenCfg config.WardenConfig) config.MonitorConfig {
			return wardenCfg.Monitor
		}),
		fx.Provide(func(wardenCfg config.WardenConfig) config.ModelConfig {
			return wardenCfg.Model
		}),
	), nil
}

// SourceModule creates an Fx module that provides the metrics and
// remediation backends. The simulator is always constructed because it
// doubles as the fallback when the live cluster is unreachable.
func SourceModule() (fx.Option, error) {
	return fx.Options(
		fx.Provide(func(k8sCfg config.K8SConfig) (service.Backends, error) {
			backends := service.Backends{
				Simulator: simulator.New(simulator.Options{}),
			}
			if k8sCfg.Source != config.SourceLive {
				return backends, nil
			}
			adapter, err := k8sadapter.NewAdapter(k8sadapter.Options{
				KubeConfigPath: k8sCfg.KubeConfigPath,
				InCluster:      k8sCfg.IsInCluster,
			})
			if err != nil {
				return backends, err
			}
			backends.Live = adapter
			backends.LiveRemediator = adapter
			return backends, nil
		}),
	), nil
}

// ServiceModule creates an Fx module that provides the service layer, return *service.Service
func ServiceModule(configModule, sourceModule fx.Option) (fx.Option, error) {
	return fx.Options(
		configModule,
		sourceModule,
		fx.Provide(func(modelCfg config.ModelConfig) *risk.Evaluator {
			return risk.NewEvaluator(modelCfg.RiskThreshold)
		}),
		fx.Provide(func(monitorCfg config.MonitorConfig) *eventlog.Log {
			return eventlog.New(monitorCfg.EventCapacity)
		}),
		fx.Provide(telemetry.New),
		fx.Provide(service.NewService),
	), nil
}

// HandlerModule creates an Fx module that provides the REST handler, return *rest.Handler
func HandlerModule(serviceModule fx.Option) (fx.Option, error) {
	return fx.Options(
		serviceModule,
		fx.Provide(rest.NewHandler),
	), nil
}
