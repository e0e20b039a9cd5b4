package palette

import "sort"

// Group is a named palette group: a DAG node whose depends-on edges
// express runtime visibility (a texture in a depended-on group is
// visible to scenes in the depending group).
type Group struct {
	Name          string
	DirectoryName string
	DependsOn     []string
	SceneCount    int

	DependencyLevel int
	DependencyOrder int
	DirectoryOrder  int
}

// GroupSet holds every declared group, keyed by name.
type GroupSet struct {
	byName map[string]*Group
}

// NewGroupSet returns an empty GroupSet.
func NewGroupSet() *GroupSet {
	return &GroupSet{byName: make(map[string]*Group)}
}

// Get returns the group with the given name, or nil.
func (gs *GroupSet) Get(name string) *Group { return gs.byName[name] }

// Add registers a group, creating it with defaults if not present,
// and returns it.
func (gs *GroupSet) Add(name string) *Group {
	if g, ok := gs.byName[name]; ok {
		return g
	}
	g := &Group{Name: name, DirectoryName: name}
	gs.byName[name] = g
	return g
}

// All returns every group, sorted by name for deterministic
// iteration.
func (gs *GroupSet) All() []*Group {
	out := make([]*Group, 0, len(gs.byName))
	for _, g := range gs.byName {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve computes DependencyLevel, DependencyOrder and
// DirectoryOrder for every group via fixed-point iteration, and
// detects cycles in depends_on.
//
// seedDirectoryOrder, if non-nil, pre-populates DirectoryOrder from a
// prior run's snapshot before iterating, mitigating the
// directory-order ambiguity between unrelated same-directory groups.
func (gs *GroupSet) Resolve(seedDirectoryOrder map[string]int) error {
	for name, g := range gs.byName {
		for _, dep := range g.DependsOn {
			if _, ok := gs.byName[dep]; !ok {
				return &Error{Kind: KindBadConfig, Op: "resolve group", Path: name, Err: ErrUnknownGroup}
			}
		}
	}

	if err := gs.detectCycle(); err != nil {
		return err
	}

	gs.resolveDependencyLevel()
	gs.resolveDependencyOrder()
	gs.resolveDirectoryOrder(seedDirectoryOrder)
	return nil
}

func (gs *GroupSet) detectCycle() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(gs.byName))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return &Error{Kind: KindBadConfig, Op: "group dependency", Path: name, Err: ErrCycle}
		case done:
			return nil
		}
		state[name] = visiting
		g := gs.byName[name]
		for _, dep := range g.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for name := range gs.byName {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// resolveDependencyLevel sets DependencyLevel = 1 + max(level of
// anything it depends on), 0 for groups with no dependencies.
func (gs *GroupSet) resolveDependencyLevel() {
	memo := make(map[string]int, len(gs.byName))
	var level func(name string) int
	level = func(name string) int {
		if v, ok := memo[name]; ok {
			return v
		}
		g := gs.byName[name]
		best := 0
		for _, dep := range g.DependsOn {
			if l := level(dep) + 1; l > best {
				best = l
			}
		}
		memo[name] = best
		return best
	}
	for name, g := range gs.byName {
		g.DependencyLevel = level(name)
	}
}

// resolveDependencyOrder and resolveDirectoryOrder implement a
// fixed-point iteration: a group's order must strictly exceed any
// group it depends on, and equal any depended-on group sharing its
// directory name (by taking the max).
// Iterated to a fixed point; DependencyLevel already bounds the
// number of iterations needed (at most len(groups) passes).
func (gs *GroupSet) resolveDependencyOrder() {
	for name, g := range gs.byName {
		_ = name
		g.DependencyOrder = 0
	}
	for pass := 0; pass < len(gs.byName)+1; pass++ {
		changed := false
		for _, g := range gs.byName {
			want := g.DependencyOrder
			for _, depName := range g.DependsOn {
				dep := gs.byName[depName]
				if dep.DirectoryName == g.DirectoryName {
					if dep.DependencyOrder > want {
						want = dep.DependencyOrder
					}
				} else if dep.DependencyOrder+1 > want {
					want = dep.DependencyOrder + 1
				}
			}
			if want != g.DependencyOrder {
				g.DependencyOrder = want
				changed = true
			}
		}
		if !changed {
			break
		}
	}
}

func (gs *GroupSet) resolveDirectoryOrder(seed map[string]int) {
	for name, g := range gs.byName {
		if seed != nil {
			if v, ok := seed[name]; ok {
				g.DirectoryOrder = v
				continue
			}
		}
		g.DirectoryOrder = 0
	}
	for pass := 0; pass < len(gs.byName)+1; pass++ {
		changed := false
		for _, g := range gs.byName {
			want := g.DirectoryOrder
			for _, depName := range g.DependsOn {
				dep := gs.byName[depName]
				if dep.DirectoryName == g.DirectoryName {
					if dep.DirectoryOrder > want {
						want = dep.DirectoryOrder
					}
				} else if dep.DirectoryOrder+1 > want {
					want = dep.DirectoryOrder + 1
				}
			}
			if want != g.DirectoryOrder {
				g.DirectoryOrder = want
				changed = true
			}
		}
		if !changed {
			break
		}
	}
}

// eligibleGroups returns the closure of groups a texture requesting
// `requested` may be placed in: every requested group plus its full
// depends-on closure. Textures in a depended-on group are visible to
// scenes in the depending group at runtime.
func (gs *GroupSet) eligibleGroups(requested map[string]bool) []*Group {
	seen := make(map[string]bool)
	var out []*Group
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		g := gs.byName[name]
		if g == nil {
			return
		}
		out = append(out, g)
		for _, dep := range g.DependsOn {
			visit(dep)
		}
	}
	for name := range requested {
		visit(name)
	}
	return out
}

// mostSpecific picks the winning group among candidates by
// specificity order: higher DirectoryOrder wins; else higher
// DependencyOrder wins; else lower SceneCount wins; else lexically
// smallest name wins, as a deterministic final tie-break.
func mostSpecific(candidates []*Group) *Group {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, g := range candidates[1:] {
		if g.DirectoryOrder != best.DirectoryOrder {
			if g.DirectoryOrder > best.DirectoryOrder {
				best = g
			}
			continue
		}
		if g.DependencyOrder != best.DependencyOrder {
			if g.DependencyOrder > best.DependencyOrder {
				best = g
			}
			continue
		}
		if g.SceneCount != best.SceneCount {
			if g.SceneCount < best.SceneCount {
				best = g
			}
			continue
		}
		if g.Name < best.Name {
			best = g
		}
	}
	return best
}
