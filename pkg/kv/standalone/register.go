package standalone

import "github.com/leafsii/kvconn/pkg/kv"

func init() {
	kv.RegisterTopology(kv.TopologyStandalone, func(cfg kv.Config, name string, opts kv.Options) (kv.Client, error) {
		return newClient(cfg, name, opts)
	})
}
