// Package catalog holds the live set of problems and languages a process
// judges against: the statically configured set plus whatever the admin
// problem-import endpoint has added since. Both cmd/server and cmd/worker
// load one at startup. A freshly imported problem needs no config-file
// edit: the process that imported it sees it at once, and every other
// process (a running worker included) sees it only after its next Load,
// that is, after it restarts.
package catalog

import (
	"context"
	"sync"

	"oj/internal/config"
	"oj/internal/model"
	"oj/internal/store"
)

// Catalog is safe for concurrent use.
type Catalog struct {
	problems *store.ProblemStore

	mu           sync.RWMutex
	problemsByID map[int64]model.Problem
	languages    map[string]model.Language
}

// Load seeds the catalog from cfg's static tables, then layers in every
// problem persisted to the database (imported at runtime by an earlier
// process or a previous boot of this one).
func Load(ctx context.Context, cfg config.Config, problems *store.ProblemStore) (*Catalog, error) {
	c := &Catalog{
		problems:     problems,
		problemsByID: make(map[int64]model.Problem, len(cfg.Problems)),
		languages:    make(map[string]model.Language, len(cfg.Languages)),
	}
	for _, p := range cfg.Problems {
		c.problemsByID[p.ID] = p
	}
	for _, l := range cfg.Languages {
		c.languages[l.Name] = l
	}
	stored, err := problems.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range stored {
		c.problemsByID[p.ID] = p
	}
	return c, nil
}

func (c *Catalog) ProblemByID(id int64) (model.Problem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.problemsByID[id]
	return p, ok
}

// AllProblemIDs returns every known problem id, for synthesizing the global
// contest.
func (c *Catalog) AllProblemIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.problemsByID))
	for id := range c.problemsByID {
		ids = append(ids, id)
	}
	return ids
}

func (c *Catalog) LanguageByName(name string) (model.Language, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.languages[name]
	return l, ok
}

// Add persists p and makes it visible to ProblemByID in this process. Other
// processes pick it up the next time they call Load.
func (c *Catalog) Add(ctx context.Context, p model.Problem) (model.Problem, error) {
	p, err := c.problems.Insert(ctx, p)
	if err != nil {
		return model.Problem{}, err
	}
	c.mu.Lock()
	c.problemsByID[p.ID] = p
	c.mu.Unlock()
	return p, nil
}
