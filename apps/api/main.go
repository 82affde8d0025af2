package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	"github.com/trezcool/ushauri/apps/api/di"
	echoapi "github.com/trezcool/ushauri/apps/api/echo"
	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/user"
	appfs "github.com/trezcool/ushauri/fs"
)

// TODO: CSRF protection once the web frontend moves to cookie sessions.
func main() {
	c := di.New("API")

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		closers *di.Closers,
		mailSvc core.EmailService,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(appfs.FS, conf, apiLogger)

		if err := user.LoadCommonPasswords(appfs.FS); err != nil {
			apiLogger.Error(fmt.Sprintf("loading common passwords: %v", err), err)
		}

		defer func() {
			if err := closers.Close(); err != nil {
				log.Printf("closing resources: %v", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.NewString("storage").Set(conf.Database.Engine)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}

		// let the pending emails go out
		if w, ok := mailSvc.(interface{ Wait() }); ok {
			w.Wait()
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
