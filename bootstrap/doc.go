// Package bootstrap runs the orchestrator's process lifecycle: typed config,
// logger initialization, component registration, startup and shutdown hooks,
// and graceful shutdown on SIGINT/SIGTERM.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(executorComponent)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return nil
//	})
//	err = app.Run(ctx)
//
// Components start in registration order and stop in reverse.
package bootstrap
