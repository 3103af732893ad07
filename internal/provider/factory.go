package provider

import (
	"github.com/contexthub-project/contexthub/internal/kv"
	"github.com/contexthub-project/contexthub/internal/permission"
	"github.com/contexthub-project/contexthub/internal/prompt"
	"github.com/contexthub-project/contexthub/internal/writeback"
)

// Factory assembles providers over shared infrastructure. Every provider
// built by the same factory shares the key-value store, the permission
// confirmer, and the write-back limits.
type Factory struct {
	Store     kv.Store
	Confirmer prompt.Confirmer
	Limits    writeback.Limits
}

// Definition describes a provider to build. A nil Source means the provider
// reads from the shared key-value store; Writable additionally wires a sink
// and a write-back store so the provider accepts contributions.
type Definition struct {
	Record            Record
	Domain            string
	Writable          bool
	AllowedAgentTypes []string
	Source            Source
	Handler           WriteHandler
}

// Build assembles a provider from a definition.
func (f *Factory) Build(def Definition) *Provider {
	perms := permission.NewStore(def.Record.ProviderID, def.Domain, f.Store, f.Confirmer)

	src := def.Source
	var sink Sink
	var wb *writeback.Store

	kvSrc := NewKVSource(def.Record.ProviderID, f.Store)
	if src == nil {
		src = kvSrc
	}
	if def.Writable {
		sink = kvSrc
		wb = writeback.NewStore(def.Record.ProviderID, f.Store, f.Limits)
	}

	return New(Config{
		Record:            def.Record,
		Domain:            def.Domain,
		Permissions:       perms,
		Source:            src,
		Sink:              sink,
		WriteBack:         wb,
		Handler:           def.Handler,
		AllowedAgentTypes: def.AllowedAgentTypes,
	})
}
