package palette

import "testing"

func TestGroupSetResolveDependencyLevel(t *testing.T) {
	gs := NewGroupSet()
	base := gs.Add("base")
	mid := gs.Add("mid")
	mid.DependsOn = []string{"base"}
	top := gs.Add("top")
	top.DependsOn = []string{"mid"}

	if err := gs.Resolve(nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if base.DependencyLevel != 0 {
		t.Errorf("base level = %d", base.DependencyLevel)
	}
	if mid.DependencyLevel != 1 {
		t.Errorf("mid level = %d", mid.DependencyLevel)
	}
	if top.DependencyLevel != 2 {
		t.Errorf("top level = %d", top.DependencyLevel)
	}
}

func TestGroupSetResolveDetectsCycle(t *testing.T) {
	gs := NewGroupSet()
	a := gs.Add("a")
	a.DependsOn = []string{"b"}
	b := gs.Add("b")
	b.DependsOn = []string{"a"}

	err := gs.Resolve(nil)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if KindOf(err) != KindBadConfig {
		t.Errorf("kind = %v, want KindBadConfig", KindOf(err))
	}
}

func TestGroupSetResolveUnknownDependency(t *testing.T) {
	gs := NewGroupSet()
	a := gs.Add("a")
	a.DependsOn = []string{"ghost"}

	if err := gs.Resolve(nil); err == nil {
		t.Fatal("expected an unknown-group error")
	}
}

func TestGroupSetDirectoryOrderSeed(t *testing.T) {
	gs := NewGroupSet()
	gs.Add("a")
	seed := map[string]int{"a": 5}
	if err := gs.Resolve(seed); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if gs.Get("a").DirectoryOrder != 5 {
		t.Errorf("directory order = %d, want seeded 5", gs.Get("a").DirectoryOrder)
	}
}

func TestEligibleGroupsIncludesDependencies(t *testing.T) {
	gs := NewGroupSet()
	base := gs.Add("base")
	child := gs.Add("child")
	child.DependsOn = []string{"base"}
	gs.Resolve(nil)

	got := gs.eligibleGroups(map[string]bool{"child": true})
	if len(got) != 2 {
		t.Fatalf("expected 2 eligible groups, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, g := range got {
		seen[g.Name] = true
	}
	if !seen["base"] || !seen["child"] {
		t.Errorf("eligible groups = %v, want base+child", seen)
	}
	_ = base
}

func TestMostSpecificTieBreak(t *testing.T) {
	a := &Group{Name: "a", DirectoryOrder: 1, DependencyOrder: 1, SceneCount: 5}
	b := &Group{Name: "b", DirectoryOrder: 1, DependencyOrder: 1, SceneCount: 2}
	c := &Group{Name: "c", DirectoryOrder: 2}

	if got := mostSpecific([]*Group{a, b, c}); got != c {
		t.Errorf("highest DirectoryOrder should win, got %v", got.Name)
	}
	if got := mostSpecific([]*Group{a, b}); got != b {
		t.Errorf("lower SceneCount should win a tie, got %v", got.Name)
	}
	if got := mostSpecific(nil); got != nil {
		t.Errorf("expected nil for no candidates, got %v", got)
	}
}
