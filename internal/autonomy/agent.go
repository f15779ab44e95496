// Package autonomy wires the mission executor daemon: the MQTT bus, the navigation client, perception,
// the executor, the task gateway and its listeners.
package autonomy

import (
	"context"
	"errors"
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/roverpilot/internal/autonomy/bus"
	"github.com/autopeer-io/roverpilot/internal/autonomy/gateway"
	"github.com/autopeer-io/roverpilot/internal/autonomy/mission"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/internal/autonomy/perception"
	"github.com/autopeer-io/roverpilot/internal/autonomy/planner"
	"github.com/autopeer-io/roverpilot/internal/autonomy/server"
	"github.com/autopeer-io/roverpilot/internal/pkg/metrics"
	"github.com/autopeer-io/roverpilot/pkg/log"
	"github.com/autopeer-io/roverpilot/pkg/options"
)

const (
	shutdownTimeout    = 10 * time.Second
	bucketCheckTimeout = 10 * time.Second
)

type Agent struct {
	vehicleID string

	bus       *bus.Bus
	modules   []bus.Module
	nav       *bus.NavTransport
	navClient *navclient.Client
	mirror    *bus.FeedbackMirror

	exec    *mission.Executor
	frames  *perception.TransformBuffer
	gateway *gateway.Gateway
	archive archive
	servers *server.Manager
}

// Gateway returns the task gateway.
func (a *Agent) Gateway() *gateway.Gateway {
	return a.gateway
}

func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting roverpilot", "vehicleID", a.vehicleID)

	if err := a.bus.Mount(ctx, a.modules...); err != nil {
		return err
	}
	if err := a.bus.Start(ctx); err != nil {
		return err
	}
	defer a.bus.Stop()

	a.checkArchive(ctx)

	a.servers.Add(serverFunc(a.mirror.Run))
	err := a.servers.Start(ctx)

	// Missions end before the bus goes away so the idle trigger still reaches the vehicle.
	log.Info("Agent shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := a.gateway.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error(shutdownErr, "Mission did not stop in time")
	}

	return err
}

// Reload applies changed mission options to missions started from now on.
func (a *Agent) Reload(mo *options.MissionOptions) error {
	if err := utilerrors.NewAggregate(mo.Validate()); err != nil {
		return err
	}
	if err := planner.Validate(mo.OrderPlanner, mo.PathPlanner); err != nil {
		return err
	}

	a.exec.SetTunables(mission.TunablesFromOptions(mo))
	a.gateway.SetObjectLabels(mo.ObjectLabels)
	a.frames.SetTolerance(mo.TransformTolerance)
	a.navClient.SetSettleDelay(mo.SettleDelay)
	a.navClient.SetServerWaitInterval(mo.ServerWaitInterval)

	log.Info("Mission options reloaded", "orderPlanner", mo.OrderPlanner, "pathPlanner", mo.PathPlanner)
	return nil
}

func (a *Agent) checkArchive(ctx context.Context) {
	checker, ok := a.archive.(interface{ CheckBucket(context.Context) error })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
	defer cancel()
	if err := checker.CheckBucket(ctx); err != nil {
		log.Error(err, "Report archive unavailable, missions will not be archived until it recovers")
		return
	}
	log.Info("Object Storage Connected")
}

// ready backs /readyz: the broker is connected and the navigation subsystem is active.
func (a *Agent) ready(ctx context.Context) error {
	if !a.bus.IsConnected() {
		return errors.New("mqtt broker not connected")
	}
	return a.navActive(ctx)
}

func (a *Agent) navActive(ctx context.Context) error {
	active, err := a.nav.NavigatorActive(ctx)
	metrics.NavReady.Set(metrics.BoolGauge(active && err == nil))
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("navigation subsystem is not active")
	}
	return nil
}

type serverFunc func(ctx context.Context) error

func (f serverFunc) Start(ctx context.Context) error { return f(ctx) }
