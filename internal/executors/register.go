package executors

import "github.com/wifientist/rtools2-sub002/internal/registry"

// RegisterAll binds every built-in executor to its phase_id. Called once at
// startup before any workflow is loaded against reg.
func RegisterAll(reg *registry.Registry) error {
	executors := []registry.PhaseExecutor{
		ValidateExecutor{},
		CreateIdentityGroupExecutor{},
		CreateDPSKPoolExecutor{},
		CreatePassphrasesExecutor{},
		CreatePSKNetworkExecutor{},
		ActivateNetworkExecutor{},
		CreateAPGroupsExecutor{},
		CreateSSIDsExecutor{},
		ActivateSSIDsExecutor{},
	}
	for _, e := range executors {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}
