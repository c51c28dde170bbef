package lockfile

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pie/internal/adapters/logger"
	"go.trai.ch/pie/internal/core/ports"
)

// NodeID is the unique identifier for the lockfile manager Graft node.
const NodeID graft.ID = "adapter.lockfile"

func init() {
	graft.Register(graft.Node[ports.LockfileManager]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.LockfileManager, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewManager(log), nil
		},
	})
}
