package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/notify/socketio"
)

// Serve runs the long-lived services until ctx is done: the health and
// metrics server, the remote preview bridge and the definition watcher.
func (a *App) Serve(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Serve method started.")

	if a.cfg.MetricsPort > 0 {
		if _, err := a.StartServer(fmt.Sprintf(":%d", a.cfg.MetricsPort)); err != nil {
			return err
		}
	} else {
		a.logger.Warn("Health check server not started: disabled")
	}
	defer a.closeServer(context.Background())

	if a.cfg.SocketIOURL != "" {
		client, err := socketio.Dial(ctx, socketio.ClientConfig{URL: a.cfg.SocketIOURL, Namespace: a.cfg.SocketIONamespace})
		if err != nil {
			return err
		}
		defer client.Close()
		ready := make(chan struct{})
		go socketio.NewBridge(a.bus, client, 0).Run(ctx, ready)
		<-ready
		a.logger.Info("Forwarding change events to the preview server.", "url", a.cfg.SocketIOURL)
	}

	err := a.Watch(ctx, 200*time.Millisecond, nil)
	a.logger.Debug("App.Serve method finished.")
	return err
}
