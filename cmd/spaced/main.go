package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/spacefab/spacefab/cmd/spaced/handlers"
	"github.com/spacefab/spacefab/pkg/agentauth"
	kcs "github.com/spacefab/spacefab/pkg/configs/server"
	pgagent "github.com/spacefab/spacefab/pkg/db/postgres/agent"
	kpool "github.com/spacefab/spacefab/pkg/db/postgres/pool"
	"github.com/spacefab/spacefab/pkg/db/postgres/schema"
	pgworkspace "github.com/spacefab/spacefab/pkg/db/postgres/workspace"
	"github.com/spacefab/spacefab/pkg/license"
	"github.com/spacefab/spacefab/pkg/utils/echoutil"
	"github.com/spacefab/spacefab/pkg/workspace/agentconfig"
	"github.com/spacefab/spacefab/pkg/workspace/desiredconfig"
	"github.com/spacefab/spacefab/pkg/workspace/reconcile"
)

func main() {
	configPath := flag.String("config-path", "", "server config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	flag.Parse()

	logger := log.New(os.Stderr, "spaced: ", log.LstdFlags)

	conf, err := kcs.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	ctx := context.Background()

	pool, err := kpool.Connect(ctx, conf.DBURI)
	if err != nil {
		log.Fatalf("can not connect to database: %s", err)
	}
	defer pool.Close()

	sch := schema.New(pool, conf.SchemaRepository)
	if err := sch.Upgrade(ctx); err != nil {
		log.Fatalf("can not upgrade schema: %s", err)
	}
	sctx, stopSchemaWatch := sch.Context(ctx)
	defer stopSchemaWatch()

	checker, err := license.FromFile(conf.LicensePath)
	if err != nil {
		log.Fatalf("can not read license: %s", err)
	}
	if err := checker.Watch(sctx, logger); err != nil {
		log.Fatalf("can not watch license: %s", err)
	}

	secret, err := os.ReadFile(conf.AgentTokenSecretPath)
	if err != nil {
		log.Fatalf("can not read agent token secret: %s", err)
	}
	issuer := agentauth.Issuer{Secret: []byte(strings.TrimSpace(string(secret)))}

	workspaces := pgworkspace.New(pool)
	agentConfigs := pgagent.New(pool)

	processor := &reconcile.Processor{
		Workspaces:   workspaces,
		AgentConfigs: agentConfigs,
		Generator:    desiredconfig.Generator{Logger: logger},
		Observers:    []reconcile.Observer{reconcile.LoggingObserver{Logger: logger}},
		Logger:       logger,
		Now:          time.Now,
	}
	updater := &agentconfig.Updater{
		AgentConfigs: agentConfigs,
		Logger:       logger,
	}

	agents := e.Group("/api/agents/:agentId", issuer.Middleware())
	agents.POST("/reconcile/", handlers.ReconcileHandler(processor, checker))
	agents.PUT("/configuration/", handlers.AgentConfigHandler(updater, checker))

	// stop serving when the schema repository runs ahead of the database.
	context.AfterFunc(sctx, func() {
		logger.Printf("shutting down: %s", context.Cause(sctx))
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			logger.Printf("error on shutdown: %s", err)
		}
	})

	if conf.TLS.Enabled() {
		log.Fatal(e.StartTLS(":"+conf.ServerPort, conf.TLS.CertPath, conf.TLS.KeyPath))
	}
	log.Fatal(e.Start(":" + conf.ServerPort))
}
