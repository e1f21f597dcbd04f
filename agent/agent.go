package agent

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/analytics"
	"github.com/luximus/flowbot/client/google"
	"github.com/luximus/flowbot/client/letta"
	"github.com/luximus/flowbot/client/wpp"
	"github.com/luximus/flowbot/config"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/integration"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/persistence/memory"
	"github.com/luximus/flowbot/persistence/redis"
	"github.com/luximus/flowbot/persistence/sqlite"
	"github.com/luximus/flowbot/rest"
	"github.com/luximus/flowbot/service"
	"github.com/luximus/flowbot/util"
)

type closer interface {
	Close() error
}

type Agent struct {
	Config             config.Config
	db                 *sql.DB
	flowDao            persistence.FlowDao
	shortLinkDao       persistence.ShortLinkDao
	userDao            persistence.UserDao
	collector          analytics.WorkflowDataCollector
	wppClient          *wpp.Client
	lettaClient        *letta.Client
	googleClient       *google.Client
	stateSigner        *google.StateSigner
	shortLinks         *service.ShortLinkService
	engine             *flow.Engine
	integrationService *service.IntegrationService
	dispatcher         *service.WebhookDispatcher
	sweeper            *service.MarkerSweeper
	httpServer         *rest.Server
	closers            []closer
	shutdown           bool
	shutdownLock       sync.Mutex
	wg                 sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		Config: config,
	}
	setup := []func() error{
		a.setupStorage,
		a.setupUserStore,
		a.setupCollector,
		a.setupClients,
		a.setupEngine,
		a.setupIntegrationService,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			a.closeAll()
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	encoderDecoder := util.NewJsonEncoderDecoder[model.FlowState]()
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		rdConf := redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
			Password:  a.Config.RedisConfig.Password,
			DB:        a.Config.RedisConfig.DB,
			FlowTTL:   a.Config.FlowTTL,
		}
		flowDao := redis.NewRedisFlowDao(rdConf, encoderDecoder)
		shortLinkDao := redis.NewRedisShortLinkDao(rdConf)
		a.flowDao, a.shortLinkDao = flowDao, shortLinkDao
		a.closers = append(a.closers, flowDao, shortLinkDao)
		if err := flowDao.Ping(context.Background()); err != nil {
			logger.Warn("redis not reachable at startup", zap.Strings("addrs", rdConf.Addrs), zap.Error(err))
		}
	case config.STORAGE_TYPE_INMEM:
		a.flowDao = memory.NewMemoryFlowDao(a.Config.FlowTTL, encoderDecoder)
		a.shortLinkDao = memory.NewMemoryShortLinkDao()
	}
	logger.Info("flow storage ready", zap.String("type", string(a.Config.StorageType)))
	return nil
}

func (a *Agent) setupUserStore() error {
	db, err := sqlite.Connect(context.Background(), a.Config.DBPath)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db)
	a.userDao = sqlite.NewSqliteUserDao(db)
	return nil
}

func (a *Agent) setupCollector() error {
	collector, err := analytics.NewDataCollector(a.Config.AnalyticsConfig)
	if err != nil {
		return err
	}
	a.collector = collector
	return nil
}

func (a *Agent) setupClients() error {
	a.wppClient = wpp.NewClient(wpp.Config{
		BaseURL:          a.Config.Wpp.BaseURL,
		SecretKey:        a.Config.Wpp.SecretKey,
		PrincipalSession: a.Config.Wpp.PrincipalSession,
		PrincipalToken:   a.Config.Wpp.PrincipalToken,
		WebhookURL:       a.Config.Wpp.WebhookURL,
	}, nil)
	a.lettaClient = letta.NewClient(letta.Config{
		BaseURL:  a.Config.Letta.BaseURL,
		Password: a.Config.Letta.Token,
	}, nil)
	a.googleClient = google.NewClient(google.Config{
		ClientID:     a.Config.Google.ClientID,
		ClientSecret: a.Config.Google.ClientSecret,
		RedirectURL:  a.Config.Google.RedirectURL,
	})
	a.stateSigner = google.NewStateSigner(a.Config.Google.StateSecret, a.Config.Google.StateTTL)
	a.shortLinks = service.NewShortLinkService(a.shortLinkDao, a.Config.ShortLinks.BaseURL, a.Config.ShortLinks.TTL)
	return nil
}

func (a *Agent) setupEngine() error {
	registry := flow.NewRegistry()
	deps := integration.Dependencies{
		Gateway:    a.wppClient,
		Agents:     a.lettaClient,
		Authorizer: a.googleClient,
		States:     a.stateSigner,
		Links:      a.shortLinks,
		Poll: integration.Polling{
			Interval: a.Config.Poll.Interval,
			Attempts: a.Config.Poll.Attempts,
		},
	}
	if err := integration.Register(registry, deps); err != nil {
		return err
	}
	a.engine = flow.NewEngine(flow.Dependencies{
		Registry:  registry,
		FlowDao:   a.flowDao,
		Subjects:  a.userDao,
		Messenger: a.wppClient.Principal(),
		Collector: a.collector,
	})
	logger.Info("flow engine ready", zap.Strings("flows", registry.Names()))
	return nil
}

func (a *Agent) setupIntegrationService() error {
	a.integrationService = service.NewIntegrationService(service.IntegrationServiceConfig{
		Engine:           a.engine,
		Users:            a.userDao,
		Agents:           a.lettaClient,
		Exchanger:        a.googleClient,
		States:           a.stateSigner,
		PrincipalSession: a.Config.Wpp.PrincipalSession,
	})
	a.dispatcher = service.NewWebhookDispatcher(a.integrationService, a.Config.Dispatch.Partitions,
		a.Config.Dispatch.Capacity, a.Config.Dispatch.Timeout, &a.wg)
	a.sweeper = service.NewMarkerSweeper(a.engine, a.userDao, a.Config.SweepInterval, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.integrationService, a.dispatcher, a.shortLinks)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	a.dispatcher.Start()
	a.sweeper.Start()
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
		a.dispatcher.Stop,
		func() error {
			a.sweeper.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all workers to finish...")
	a.wg.Wait()
	a.closeAll()
	return nil
}

func (a *Agent) closeAll() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.Warn("error closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}
