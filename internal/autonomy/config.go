package autonomy

import (
	"fmt"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/roverpilot/internal/autonomy/bus"
	"github.com/autopeer-io/roverpilot/internal/autonomy/gateway"
	"github.com/autopeer-io/roverpilot/internal/autonomy/mission"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/internal/autonomy/perception"
	"github.com/autopeer-io/roverpilot/internal/autonomy/planner"
	"github.com/autopeer-io/roverpilot/internal/autonomy/report"
	"github.com/autopeer-io/roverpilot/internal/autonomy/server"
	"github.com/autopeer-io/roverpilot/pkg/log"
	"github.com/autopeer-io/roverpilot/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/roverpilot/pkg/mqtt/topic"
	"github.com/autopeer-io/roverpilot/pkg/options"
)

type Config struct {
	MqttOptions    *options.MqttOptions
	HttpOptions    *options.HttpOptions
	GrpcOptions    *options.GrpcOptions
	S3Options      *options.S3Options
	MissionOptions *options.MissionOptions
}

// archive is what the agent needs from the report store.
type archive interface {
	gateway.Archiver
	report.Linker
}

func (cfg *Config) NewAgent() (*Agent, error) {
	vid := cfg.MissionOptions.VehicleID
	if vid == "" {
		vid = DiscoverVehicleID()
	}
	if vid == "" {
		return nil, fmt.Errorf("FATAL: unable to determine the vehicle id (set --mission.vehicle-id or %s)", vehicleIDEnv)
	}

	if err := planner.Validate(cfg.MissionOptions.OrderPlanner, cfg.MissionOptions.PathPlanner); err != nil {
		return nil, err
	}

	mqttClient, topicBuilder, err := cfg.initMqttClientAndTopicBuilder(vid)
	if err != nil {
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}

	archive, err := cfg.initArchive()
	if err != nil {
		return nil, err
	}

	return cfg.newAgent(vid, mqttClient, topicBuilder, clock.RealClock{}, archive), nil
}

// newAgent assembles the component graph on an already built client.
func (cfg *Config) newAgent(vid string, mc mqtt.Client, topics *mqtttopic.Builder, clk clock.Clock, archive archive) *Agent {
	mo := cfg.MissionOptions

	nav := bus.NewNavTransport(cfg.MqttOptions.AckTimeout, clk)
	navClient := navclient.New(nav,
		navclient.WithClock(clk),
		navclient.WithServerWaitInterval(mo.ServerWaitInterval),
		navclient.WithSettleDelay(mo.SettleDelay),
	)

	cache := perception.NewCache()
	frames := perception.NewTransformBuffer(mo.TransformTolerance)
	location := &perception.Localization{}
	tracker := perception.NewTracker(cache, frames, location, log.WithName("perception"))

	vehicle := bus.NewVehicle()
	mirror := bus.NewFeedbackMirror()

	exec := mission.NewExecutor(mission.Deps{
		Nav:      navClient,
		Vehicle:  vehicle,
		Detector: vehicle,
		Markers:  vehicle,
		Fixes:    location,
		Cache:    cache,
	}, mission.TunablesFromOptions(mo), mission.WithClock(clk))

	gw := gateway.New(exec, mo.ObjectLabels,
		gateway.WithArchiver(archive),
		gateway.WithMirror(mirror),
		gateway.WithClock(clk),
	)

	a := &Agent{
		vehicleID: vid,
		bus:       bus.New(mc, topics, vid),
		modules:   []bus.Module{nav, vehicle, bus.NewSensors(tracker), mirror},
		nav:       nav,
		navClient: navClient,
		mirror:    mirror,
		exec:      exec,
		frames:    frames,
		gateway:   gw,
		archive:   archive,
	}
	a.servers = server.NewManager(&server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
	}, server.Deps{
		Missions:  gw,
		Reports:   archive,
		Ready:     a.ready,
		NavActive: a.navActive,
	})
	return a
}

func (cfg *Config) initMqttClientAndTopicBuilder(vid string) (mqtt.Client, *mqtttopic.Builder, error) {
	topicBuilder := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("roverpilot-%s", vid)
	}

	mqttConfig.WillTopic, mqttConfig.WillPayload = bus.IdleWill(topicBuilder, vid)
	mqttConfig.WillQoS = 1
	mqttConfig.WillRetain = true

	mqttClient, err := mqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, nil, err
	}

	return mqttClient, topicBuilder, nil
}

func (cfg *Config) initArchive() (archive, error) {
	if !cfg.S3Options.Enabled {
		log.Info("Mission report archive disabled")
		return report.Nop{}, nil
	}
	a, err := report.NewMinIO(cfg.S3Options)
	if err != nil {
		return nil, fmt.Errorf("failed to init report archive: %w", err)
	}
	return a, nil
}
