package shared

// Navigation entries guarding the administrative API. The ids match the seeded
// menus and submenus rows (see scripts/seed/fixtures.yaml).
const (
	MenuSecurity int64 = 1
	MenuSystem   int64 = 2

	SubmenuUsers      int64 = 5
	SubmenuRoles      int64 = 6
	SubmenuMenuGrants int64 = 7
)
