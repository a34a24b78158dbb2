// Package httpserver runs the admin HTTP API with graceful shutdown and
// provides liveness and readiness handlers.
//
// Run blocks until the context is cancelled, then shuts the server down with
// http.Server.Shutdown bounded by the configured shutdown timeout. Signal
// handling belongs to the caller (signal.NotifyContext in main).
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	r.Get("/health/live", httpserver.LivenessHandler())
//	r.Get("/health/ready", httpserver.ReadinessHandler(log,
//		httpserver.Check{Name: "postgres", Fn: pool.Ping},
//		httpserver.Check{Name: "redis", Fn: redisPing},
//	))
//	if err := srv.Run(ctx, r); err != nil {
//		return err
//	}
//
// Start and stop failures wrap ErrStart and ErrShutdown.
package httpserver
