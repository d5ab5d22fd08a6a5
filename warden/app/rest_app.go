package app

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/nodepulse/nodepulse/config"
	"github.com/nodepulse/nodepulse/pkg/logger"
	"github.com/nodepulse/nodepulse/warden/rest"
	"github.com/nodepulse/nodepulse/warden/service"
)

func NewRestApp(configName string, configDirPath string) (*fx.App, error) {
	cfg, err := config.InitWardenConfig(configName, configDirPath)
	if err != nil {
		return nil, err
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Console)

	cfgModule, err := ConfigModule(cfg)
	if err != nil {
		return nil, err
	}
	sourceModule, err := SourceModule()
	if err != nil {
		return nil, err
	}
	serviceModule, err := ServiceModule(cfgModule, sourceModule)
	if err != nil {
		return nil, err
	}
	handlerModule, err := HandlerModule(serviceModule)
	if err != nil {
		return nil, err
	}

	app := fx.New(
		handlerModule,
		fx.Invoke(StartMonitor),
		fx.Invoke(StartRestApp),
	)
	return app, nil
}

// StartMonitor wires the monitoring loop into the app lifecycle. The
// loop autostarts unless disabled in config; stop always joins the
// goroutine before the process exits.
func StartMonitor(lc fx.Lifecycle, monitorCfg config.MonitorConfig, svc *service.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if monitorCfg.Autostart {
				svc.StartMonitoring(ctx)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			svc.StopMonitoring(ctx)
			return nil
		},
	})
}

func StartRestApp(lc fx.Lifecycle, cfg config.ServerConfig, handler *rest.Handler) error {
	engine := echo.New()
	engine.HideBanner = true
	handler.SetupRoutes(engine)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			serverHost := cfg.Host
			if serverHost == "" {
				serverHost = ":8080"
			}
			go func() {
				logger.Logger(ctx).Info().Msgf("starting warden server on %s", serverHost)
				if err := engine.Start(serverHost); err != nil {
					logger.Logger(ctx).Fatal().Err(err).Msgf("start rest server fail on %s", serverHost)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Logger(ctx).Info().Msg("shutting down warden server")
			return engine.Shutdown(ctx)
		},
	})

	return nil
}
