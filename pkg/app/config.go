package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFlagName = "config"

var cfgFile string

// AddConfigFlag registers --config and prepares viper to read the file and the environment. Environment
// variables are prefixed with the upper-cased command name: ROVERPILOT_MQTT_BROKER_URL sets
// mqtt.broker-url.
func AddConfigFlag(fs *pflag.FlagSet, name string) {
	fs.StringVarP(&cfgFile, configFlagName, "c", cfgFile, "Read configuration from specified `FILE`, "+
		"support JSON, TOML, YAML, HCL, or Java properties formats.")

	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix(name))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// readConfig loads the config file, if any. Without --config it looks for <name>.yaml in the working
// directory, $HOME/.<name> and /etc/<name>, and a missing file is not an error.
func readConfig(name string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(name)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, "."+name))
		}
		viper.AddConfigPath(filepath.Join("/etc", name))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read configuration file(%s): %w", cfgFile, err)
	}
	return nil
}

func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
