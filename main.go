package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
	orchestratorx "github.com/oakline/supportflow/agent/orchestrator"
	routerx "github.com/oakline/supportflow/agent/router"
	statex "github.com/oakline/supportflow/agent/state"
	workflowx "github.com/oakline/supportflow/agent/workflow"
	configx "github.com/oakline/supportflow/pkg/config"
	_ "github.com/oakline/supportflow/pkg/logger/autoload"
	openrouterx "github.com/oakline/supportflow/pkg/openrouter"
	toolhttpx "github.com/oakline/supportflow/pkg/toolhttp"
)

type AppConfig struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" split_words:"true" default:":8080"`
	StateBackend string `envconfig:"STATE_BACKEND" split_words:"true" default:"memory"`
}

func main() {
	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("")

	store := buildStore(ctx, appCfg.StateBackend)
	classifier := buildClassifier(ctx)
	tools := buildGateway()

	orch, err := orchestratorx.New(store, classifier, tools, workflowx.NewEngine())
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.POST("/turns", func(c echo.Context) error {
		var req contractx.TurnRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		resp, err := orch.HandleTurn(c.Request().Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, orchestratorx.ErrInvalidConvID),
				errors.Is(err, orchestratorx.ErrInvalidMessage),
				errors.Is(err, contractx.ErrValidation):
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "turn failed")
			}
		}
		return c.JSON(http.StatusOK, resp)
	})

	log.Info().Str("addr", appCfg.ListenAddr).Msg("supportflow listening")
	if err := e.Start(appCfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func buildStore(ctx context.Context, backend string) statex.Store {
	switch backend {
	case "postgres":
		cfg := configx.MustNew[statex.PostgresConfig]("POSTGRES")
		store, err := statex.NewPostgresStore(ctx, *cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build postgres store")
		}
		return store
	case "redis":
		cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build redis store")
		}
		return store
	default:
		log.Warn().Msg("using in-memory state store; conversations will not survive restarts")
		return statex.NewMemoryStore()
	}
}

func buildClassifier(ctx context.Context) contractx.Classifier {
	cfg, err := configx.New[openrouterx.Config]("OPENROUTER")
	if err != nil {
		log.Warn().Err(err).Msg("no model configured; using keyword classifier")
		return routerx.KeywordRouter{}
	}

	r, err := routerx.New(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("classifier model unavailable; using keyword classifier")
		return routerx.KeywordRouter{}
	}
	return r
}

func buildGateway() *gatewayx.Gateway {
	var client *toolhttpx.Client
	if cfg, err := configx.New[toolhttpx.Config]("TOOL_API"); err == nil {
		if c, cerr := toolhttpx.NewClient(*cfg); cerr == nil {
			client = c
		} else {
			log.Warn().Err(cerr).Msg("tool endpoint misconfigured; tools will fail closed")
		}
	} else {
		log.Warn().Msg("no tool endpoint configured; tools will fail closed")
	}
	return gatewayx.New(gatewayx.CatalogOptions(client)...)
}
