package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/ushauri/apps/api/di"
	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
	appfs "github.com/trezcool/ushauri/fs"
	"github.com/trezcool/ushauri/storage/database"
)

var logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

func main() {
	c := di.New("ADMIN")

	var code int
	err := c.Invoke(func(
		conf *core.Config,
		appLogger core.Logger,
		closers *di.Closers,
		mailSvc core.EmailService,
		usrRepo user.Repository,
		planSvc *studyplan.Service,
	) {
		defer func() {
			if err := closers.Close(); err != nil {
				logger.Printf("closing resources: %v", err)
			}
		}()
		core.ParseEmailTemplates(appfs.FS, conf, appLogger)

		cli := commandLine{
			usrRepo: usrRepo,
			planSvc: planSvc,
			out:     os.Stdout,
		}
		if conf.Database.Engine == di.EnginePostgres {
			cli.openDB = func() (*sqlx.DB, error) { return database.Open(conf) }
		}

		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("error: %+v", err)
			}
			code = 1
		}

		// let the plan emails go out
		if w, ok := mailSvc.(interface{ Wait() }); ok {
			w.Wait()
		}
	})
	if err != nil {
		logger.Fatal(err)
	}
	os.Exit(code)
}
