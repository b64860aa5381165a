package registry

import (
	"github.com/cuemby/vigil/pkg/filestore"
	"github.com/cuemby/vigil/pkg/notify"
	"github.com/cuemby/vigil/pkg/probe"
	"github.com/cuemby/vigil/pkg/store"
)

// Registry bundles the collaborators the workers depend on. A nil
// channel sender disables that channel; a nil file store disables
// screenshot persistence.
type Registry struct {
	Store  store.Store
	Prober probe.Prober
	Files  filestore.Storage
	Mailer notify.Mailer
	SMS    notify.SMSSender
	Push   notify.PushSender
}
