package server

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/store"
)

type ctxKey string

const profileLoaderKey ctxKey = "profileLoader"

// newProfileLoader batches profile lookups made while serving one request
// into a single GetProfiles call. Unknown ids resolve to nil.
func newProfileLoader(st store.Store) *dataloader.Loader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		profiles, err := st.GetProfiles(ctx, keys.Keys())
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		byID := make(map[string]*model.Profile, len(profiles))
		for _, p := range profiles {
			byID[p.ID] = p
		}
		for i, k := range keys {
			if p, ok := byID[k.String()]; ok {
				results[i] = &dataloader.Result{Data: p}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}
	return dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(2*time.Millisecond))
}

// withProfileLoader attaches a fresh loader to every request so cached
// profiles never outlive it.
func (s *Server) withProfileLoader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), profileLoaderKey, newProfileLoader(s.store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func profileLoaderFromContext(ctx context.Context) *dataloader.Loader {
	if l, ok := ctx.Value(profileLoaderKey).(*dataloader.Loader); ok {
		return l
	}
	return nil
}

// expandProfiles fills ProfileRefs on every view. All lookups are queued
// before any is awaited so the loader can batch them.
func (s *Server) expandProfiles(ctx context.Context, views []*eventView) error {
	loader := profileLoaderFromContext(ctx)
	if loader == nil {
		loader = newProfileLoader(s.store)
	}

	thunks := make([]dataloader.ThunkMany, len(views))
	for i, v := range views {
		if len(v.Profiles) > 0 {
			thunks[i] = loader.LoadMany(ctx, dataloader.NewKeysFromStrings(v.Profiles))
		}
	}
	for i, thunk := range thunks {
		if thunk == nil {
			views[i].ProfileRefs = []*model.Profile{}
			continue
		}
		data, errs := thunk()
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		refs := make([]*model.Profile, 0, len(data))
		for _, d := range data {
			if p, ok := d.(*model.Profile); ok && p != nil {
				refs = append(refs, p)
			}
		}
		views[i].ProfileRefs = refs
	}
	return nil
}
