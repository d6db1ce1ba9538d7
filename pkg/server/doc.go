// Package server assembles a kiln HTTP server from a project config.
//
// A Server owns one bundle generator, one bundle cache and the
// distribution handler in front of them. Requests pass through the
// configured middleware chain and are then dispatched in this order:
//
//	GET|HEAD {distribution.path}   on-demand bundles
//	GET      {server.metricsPath}  Prometheus metrics
//	GET      /_kiln/routes         OpenAPI document of the app routes
//	GET      /_kiln/reload         live-reload websocket (dev only)
//	GET      /_kiln/reload.js      live-reload client (dev only)
//	*                              static files, then the app router
//
// Typical use:
//
//	cfg, _ := config.LoadFromWorkingDir()
//	srv, err := server.New(cfg, server.WithDev(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Router().Get("/api/hello", hello)
//	log.Fatal(srv.Run(ctx))
//
// Run blocks until ctx is cancelled, then shuts down gracefully within
// server.shutdownTimeout.
package server
