package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

// appID scopes the machine id so the raw id isn't exposed.
const appID = "gse"

// MachineID retrieves the ID identifying the machine. A random ID is
// used if the machine has none.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return uuid.New().String()
	}
	return id[:16]
}
