package autonomy

import (
	"os"
	"strings"

	"github.com/autopeer-io/roverpilot/pkg/log"
)

const (
	vehicleIDEnv  = "ROVERPILOT_VEHICLE_ID"
	vehicleIDFile = "/etc/roverpilot/vehicle-id"
)

// DiscoverVehicleID reads the vehicle identity provisioned on the host: the environment first, then
// the identity file. It returns "" when neither is set.
func DiscoverVehicleID() string {
	return discoverVehicleID(os.Getenv, vehicleIDFile)
}

func discoverVehicleID(getenv func(string) string, file string) string {
	if envID := strings.TrimSpace(getenv(vehicleIDEnv)); envID != "" {
		log.Info("VehicleID detected from env", "id", envID)
		return envID
	}

	if content, err := os.ReadFile(file); err == nil {
		if id := strings.TrimSpace(string(content)); id != "" {
			log.Info("VehicleID detected from file", "id", id, "file", file)
			return id
		}
	}

	return ""
}
