package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/roverpilot/pkg/options"
)

type testOptions struct {
	Mission *options.MissionOptions `json:"mission" mapstructure:"mission"`
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.Mission.AddFlags(fss.FlagSet("mission"))
	return fss
}

func (o *testOptions) Complete() error { return nil }

func (o *testOptions) Validate() error { return utilerrors.NewAggregate(o.Mission.Validate()) }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "roverpilot.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func runApp(t *testing.T, args ...string) (*testOptions, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	t.Cleanup(viper.Reset)

	opts := &testOptions{Mission: options.NewMissionOptions()}
	ran := false
	a := NewApp("roverpilot-test", "test", WithOptions(opts), WithSilence(), WithRunFunc(func() error {
		ran = true
		return nil
	}))
	a.Command().SetArgs(args)
	err := a.Command().Execute()
	if err == nil && !ran {
		t.Error("run func was not called")
	}
	return opts, err
}

func TestConfigFileOverlaysDefaults(t *testing.T) {
	cfg := writeConfig(t, `
mission:
  order-planner: brute
  wait-time: 2s
  spin-stops: 6
`)

	opts, err := runApp(t, "--config", cfg, "--mission.spin-stops", "8")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	m := opts.Mission
	if m.OrderPlanner != "brute" || m.WaitTime != 2*time.Second {
		t.Errorf("config values not applied: %+v", m)
	}
	if m.SpinStops != 8 {
		t.Errorf("SpinStops = %d, want the flag to win over the file", m.SpinStops)
	}
	if m.PathPlanner != "basic" || m.GPSNavTimeout != 210*time.Second {
		t.Errorf("defaults lost: %+v", m)
	}
}

func TestInvalidOptionsAreRejected(t *testing.T) {
	cfg := writeConfig(t, "mission:\n  spin-stops: 1\n")

	if _, err := runApp(t, "--config", cfg); err == nil {
		t.Error("Execute() accepted spin-stops=1")
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runApp(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Execute() accepted a missing --config file")
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		t.Errorf("explicit config reported as not found on search path: %v", err)
	}
}

func TestPositionalArgsRejected(t *testing.T) {
	viper.Reset()
	cfgFile = ""
	t.Cleanup(viper.Reset)

	a := NewApp("roverpilot-test", "test", WithDefaultValidArgs(), WithNoConfig(), WithSilence())
	a.Command().SetArgs([]string{"extra"})
	if err := a.Command().Execute(); err == nil {
		t.Error("Execute() accepted a positional argument")
	}
}
