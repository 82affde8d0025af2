// Package di wires the app dependencies in a dig.Container.
package di

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/ushauri/apps/api/echo"
	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
	emailsvc "github.com/trezcool/ushauri/services/email"
	logsvc "github.com/trezcool/ushauri/services/logger"
	boltdb "github.com/trezcool/ushauri/storage/bolt"
	rediscache "github.com/trezcool/ushauri/storage/cache"
	"github.com/trezcool/ushauri/storage/database"
	sqlxrepos "github.com/trezcool/ushauri/storage/database/sqlx"
)

const (
	EngineBolt     = "bolt"
	EnginePostgres = "postgres"
)

type (
	// Component names the binary using the container; it prefixes the app logs, e.g. "API".
	Component string

	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Storage is the persistence picked by conf.Database.Engine.
	Storage struct {
		dig.Out
		Users user.Repository
		Plans studyplan.Repository
	}
)

// Closers releases the resources opened by the providers, last opened first.
type Closers struct {
	fns []func() error
}

func (c *Closers) add(fn func() error) { c.fns = append(c.fns, fn) }

// Close runs every closer and returns the first error.
func (c *Closers) Close() error {
	var first error
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil && first == nil {
			first = err
		}
	}
	c.fns = nil
	return first
}

func newLogger(conf *core.Config, name Component, closers *Closers) core.Logger {
	std := log.New(os.Stdout, fmt.Sprintf("%s : ", name), log.LstdFlags)
	logger := logsvc.NewRollbarLogger(std, conf)
	closers.add(func() error {
		logger.Close()
		return nil
	})
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	std := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(std, conf)
}

func openPostgres(conf *core.Config, closers *Closers) (Storage, error) {
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		return Storage{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return Storage{}, errors.Wrap(err, "opening database")
	}
	closers.add(db.Close)

	if err = database.Migrate(db); err != nil {
		return Storage{}, err
	}
	return Storage{
		Users: sqlxrepos.NewUserRepository(db),
		Plans: sqlxrepos.NewStudyPlanRepository(db),
	}, nil
}

func openBolt(conf *core.Config, closers *Closers) (Storage, error) {
	store, err := boltdb.Open(conf.Database.BoltPath)
	if err != nil {
		return Storage{}, err
	}
	closers.add(store.Close)

	return Storage{
		Users: boltdb.NewUserRepository(store),
		Plans: boltdb.NewStudyPlanRepository(store),
	}, nil
}

func newStorage(conf *core.Config, closers *Closers, loggerParam DBLoggerParam) Storage {
	var (
		st  Storage
		err error
	)
	switch conf.Database.Engine {
	case EnginePostgres:
		st, err = openPostgres(conf, closers)
	case EngineBolt:
		st, err = openBolt(conf, closers)
	default:
		err = errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	loggerParam.Logger.Info(fmt.Sprintf("using %s storage", conf.Database.Engine))
	return st
}

// newPlanCache caches plans in redis when conf.Redis.Addr is set. A redis outage only disables the cache.
func newPlanCache(conf *core.Config, logger core.Logger, closers *Closers) studyplan.Cache {
	if conf.Redis.Addr == "" {
		return studyplan.NopCache{}
	}
	rdb, err := rediscache.Connect(context.Background(), conf)
	if err != nil {
		logger.Error(fmt.Sprintf("plan cache disabled: %v", err), err)
		return studyplan.NopCache{}
	}
	closers.add(rdb.Close)
	return rediscache.NewPlanCache(rdb, conf.Redis.PlanTTL)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	std := log.New(os.Stdout, "EMAIL : ", log.LstdFlags)
	return emailsvc.NewService(std, logger, conf)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	studyplan.InitValidators(validate, translator)
	return validate
}

func newPlanService(
	repo studyplan.Repository,
	cache studyplan.Cache,
	usrSvc *user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *studyplan.Service {
	return studyplan.NewService(repo, cache, usrSvc, mailSvc, logger, conf)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	usrSvc *user.Service,
	planSvc *studyplan.Service,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		PlanSvc:    planSvc,
		Validate:   validate,
		Translator: translator,
	})
}

// New returns a new dependency injection dig.Container. Values are built on first use.
func New(name Component) *dig.Container {
	c := dig.New()

	must(c.Provide(func() Component { return name }))
	must(c.Provide(core.NewConfig))
	must(c.Provide(func() *Closers { return new(Closers) }))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newPlanCache))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(newPlanService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
