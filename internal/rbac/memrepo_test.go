package rbac

import (
	"context"
	"sync"
)

// memRepo is an in-memory Repository used across the package tests.
type memRepo struct {
	mu         sync.Mutex
	primary    map[int64]int64
	secondary  map[int64][]int64
	roles      map[int64]Role
	menus      []MenuNode
	menuGrants map[int64]map[int64]struct{}
	subGrants  map[int64]map[int64]struct{}
	err        error
	roleCalls  int
	grantCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{
		primary:    map[int64]int64{},
		secondary:  map[int64][]int64{},
		roles:      map[int64]Role{},
		menuGrants: map[int64]map[int64]struct{}{},
		subGrants:  map[int64]map[int64]struct{}{},
	}
}

func (m *memRepo) addRole(id int64, label string, active bool) {
	m.roles[id] = Role{ID: id, Label: label, Active: active}
}

func (m *memRepo) grant(roleID int64, res Resource) {
	target := m.menuGrants
	if res.Kind() == KindSubmenu {
		target = m.subGrants
	}
	if target[res.ID()] == nil {
		target[res.ID()] = map[int64]struct{}{}
	}
	target[res.ID()][roleID] = struct{}{}
}

func (m *memRepo) menuActive(id int64) bool {
	for _, menu := range m.menus {
		if menu.ID == id {
			return menu.Active
		}
	}
	return false
}

func (m *memRepo) submenuActive(id int64) bool {
	for _, menu := range m.menus {
		for _, s := range menu.Submenus {
			if s.ID == id {
				return s.Active && menu.Active
			}
		}
	}
	return false
}

func (m *memRepo) RoleIDs(ctx context.Context, principalID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleCalls++
	if m.err != nil {
		return nil, m.err
	}
	seen := map[int64]struct{}{}
	var out []int64
	add := func(id int64) {
		if role, ok := m.roles[id]; !ok || !role.Active {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if id, ok := m.primary[principalID]; ok {
		add(id)
	}
	for _, id := range m.secondary[principalID] {
		add(id)
	}
	return out, nil
}

func (m *memRepo) GrantedRoles(ctx context.Context, res Resource, roleIDs []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantCalls++
	if m.err != nil {
		return nil, m.err
	}
	edges := m.menuGrants[res.ID()]
	active := m.menuActive(res.ID())
	if res.Kind() == KindSubmenu {
		edges = m.subGrants[res.ID()]
		active = m.submenuActive(res.ID())
	}
	if !active {
		return nil, nil
	}
	var out []int64
	for _, id := range roleIDs {
		if _, ok := edges[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memRepo) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, m.err
}

func (m *memRepo) ListResources(ctx context.Context) ([]MenuNode, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.menus, nil
}

func (m *memRepo) GrantsForRoles(ctx context.Context, roleIDs []int64) ([]Grant, error) {
	if m.err != nil {
		return nil, m.err
	}
	want := map[int64]struct{}{}
	for _, id := range roleIDs {
		want[id] = struct{}{}
	}
	var out []Grant
	for menuID, holders := range m.menuGrants {
		for roleID := range holders {
			if _, ok := want[roleID]; ok {
				out = append(out, Grant{RoleID: roleID, Resource: Menu(menuID)})
			}
		}
	}
	for subID, holders := range m.subGrants {
		for roleID := range holders {
			if _, ok := want[roleID]; ok {
				out = append(out, Grant{RoleID: roleID, Resource: Submenu(subID)})
			}
		}
	}
	return out, nil
}

func (m *memRepo) PrincipalsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	var out []int64
	for pid, rid := range m.primary {
		if rid == roleID {
			out = append(out, pid)
		}
	}
	return out, m.err
}

func (m *memRepo) InsertGrant(ctx context.Context, g Grant) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.roles[g.RoleID]; !ok {
		return ErrNotFound
	}
	m.grant(g.RoleID, g.Resource)
	return nil
}

func (m *memRepo) DeleteGrant(ctx context.Context, g Grant) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	target := m.menuGrants
	if g.Resource.Kind() == KindSubmenu {
		target = m.subGrants
	}
	if _, ok := target[g.Resource.ID()][g.RoleID]; !ok {
		return 0, nil
	}
	delete(target[g.Resource.ID()], g.RoleID)
	return 1, nil
}

// residentialFixture: roles Admin(1), Staff(2), Owner(3); menu 1 "Security"
// with submenus 6 "Roles" and 7 "Menu grants"; menu 2 "Visitors" with submenu 8.
func residentialFixture() *memRepo {
	repo := newMemRepo()
	repo.addRole(1, "Admin", true)
	repo.addRole(2, "Staff", true)
	repo.addRole(3, "Owner", true)
	repo.menus = []MenuNode{
		{ID: 1, Label: "Security", SortOrder: 2, Active: true, Submenus: []SubmenuNode{
			{ID: 7, MenuID: 1, Label: "Menu grants", SortOrder: 2, Active: true},
			{ID: 6, MenuID: 1, Label: "Roles", SortOrder: 1, Active: true},
		}},
		{ID: 2, Label: "Visitors", SortOrder: 1, Active: true, Submenus: []SubmenuNode{
			{ID: 8, MenuID: 2, Label: "Register visit", SortOrder: 1, Active: true},
		}},
		{ID: 3, Label: "Archived", SortOrder: 3, Active: false, Submenus: []SubmenuNode{}},
	}
	repo.primary[1] = 1
	repo.primary[42] = 3
	repo.grant(1, Menu(1))
	repo.grant(1, Submenu(6))
	repo.grant(1, Submenu(7))
	repo.grant(3, Submenu(8))
	return repo
}
