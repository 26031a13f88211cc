package api

import (
	"context"

	"renderlink/callback"
	"renderlink/client"
	"renderlink/handle"
	"renderlink/message"
)

// ProjectManager is a proxy for the host's project manager.
type ProjectManager struct {
	handle.Proxy
	c *client.Client
}

// Observer identifies one project observer registration.
type Observer struct {
	ID         int32
	Generation uint64
}

func NewProjectManager(ctx context.Context, c *client.Client) (ProjectManager, error) {
	p, err := Create(ctx, c, message.ObjectTypeProjectManager, handle.Proxy{})
	if err != nil {
		return ProjectManager{}, err
	}
	return ProjectManager{Proxy: p, c: c}, nil
}

// AddObserver registers fn for project events until RemoveObserver.
func (pm ProjectManager) AddObserver(ctx context.Context, fn callback.ProjectChangedFunc, userData any) (Observer, error) {
	reg, err := pm.c.Bridge().Register(ctx, callback.KindProjectChanged, fn, userData,
		func(ctx context.Context, source string) (int32, error) {
			req := &message.AddObserverRequest{Object: pm.Ref(), CallbackSource: source}
			resp := new(message.RegisterCallbackResponse)
			if out := pm.c.Invoke(ctx, message.ApiProjectManagerAddObserver, req, resp); out.Err != nil {
				return 0, out.Err
			}
			return resp.CallbackId, nil
		},
		func(ctx context.Context, id int32) error {
			_, err := pm.removeOnHost(ctx, id)
			return err
		})
	if err != nil {
		return Observer{}, err
	}
	return Observer{ID: reg.ID, Generation: reg.Generation}, nil
}

// RemoveObserver stops delivery on the host first, then drops the local
// registration. It reports whether obs was still registered. An Observer whose
// id now belongs to a newer registration is stale: it removes nothing.
func (pm ProjectManager) RemoveObserver(ctx context.Context, obs Observer) (bool, error) {
	live, err := pm.c.Bridge().Lookup(obs.ID)
	if err != nil || live.Generation != obs.Generation || live.Kind != callback.KindProjectChanged {
		return false, nil
	}
	removed, err := pm.removeOnHost(ctx, obs.ID)
	if err != nil {
		return false, err
	}
	pm.c.Bridge().UnregisterGeneration(obs.ID, obs.Generation)
	return removed, nil
}

func (pm ProjectManager) removeOnHost(ctx context.Context, id int32) (bool, error) {
	req := &message.RemoveObserverRequest{Object: pm.Ref(), CallbackId: id}
	out := pm.c.Invoke(ctx, message.ApiProjectManagerRemoveObserver, req, new(message.BoolResponse))
	if out.Err != nil {
		return false, out.Err
	}
	return out.OK(), nil
}
