package rbac

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/httpx"
)

var (
	// ErrMisconfiguredRoute indicates a protected route was wired without a usable resource.
	ErrMisconfiguredRoute = errors.New("rbac: route declares no resource")
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = httpx.NewError(httpx.ErrNotFound, "role or resource not found")
	// ErrInvalidResource indicates a client supplied an unknown kind or a non-positive id.
	ErrInvalidResource = httpx.NewError(httpx.ErrValidation, "invalid resource")
)

// Kind discriminates the two resource variants.
type Kind string

const (
	KindMenu    Kind = "menu"
	KindSubmenu Kind = "submenu"
)

// Resource is a navigable unit a route can require. The only implementations
// are Menu and Submenu.
type Resource interface {
	Kind() Kind
	ID() int64
	String() string
	sealed()
}

// Menu references a top-level menu entry.
type Menu int64

func (m Menu) Kind() Kind     { return KindMenu }
func (m Menu) ID() int64      { return int64(m) }
func (m Menu) String() string { return fmt.Sprintf("menu:%d", int64(m)) }
func (Menu) sealed()          {}

// Submenu references an entry nested under a menu.
type Submenu int64

func (s Submenu) Kind() Kind     { return KindSubmenu }
func (s Submenu) ID() int64      { return int64(s) }
func (s Submenu) String() string { return fmt.Sprintf("submenu:%d", int64(s)) }
func (Submenu) sealed()          {}

// Valid reports whether res can be evaluated.
func Valid(res Resource) bool {
	return res != nil && res.ID() > 0
}

// ParseResource builds a Resource from its wire form.
func ParseResource(kind string, id int64) (Resource, error) {
	if id <= 0 {
		return nil, ErrInvalidResource
	}
	switch Kind(kind) {
	case KindMenu:
		return Menu(id), nil
	case KindSubmenu:
		return Submenu(id), nil
	default:
		return nil, ErrInvalidResource
	}
}

// Decision is the outcome of a permission check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Role represents a named category of principals.
type Role struct {
	ID     int64  `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// Grant links a role to a resource.
type Grant struct {
	RoleID   int64
	Resource Resource
}

// GrantView is the JSON shape of a Grant.
type GrantView struct {
	RoleID     int64 `json:"role_id"`
	Kind       Kind  `json:"kind"`
	ResourceID int64 `json:"resource_id"`
}

// View converts g to its JSON shape.
func (g Grant) View() GrantView {
	return GrantView{RoleID: g.RoleID, Kind: g.Resource.Kind(), ResourceID: g.Resource.ID()}
}

// MenuNode is a menu with its nested submenus.
type MenuNode struct {
	ID        int64         `json:"id"`
	Label     string        `json:"label"`
	Icon      string        `json:"icon"`
	URL       string        `json:"url"`
	SortOrder int           `json:"sort_order"`
	Active    bool          `json:"active"`
	Submenus  []SubmenuNode `json:"submenus"`
}

// SubmenuNode is a submenu entry.
type SubmenuNode struct {
	ID        int64  `json:"id"`
	MenuID    int64  `json:"menu_id"`
	Label     string `json:"label"`
	Icon      string `json:"icon"`
	URL       string `json:"url"`
	SortOrder int    `json:"sort_order"`
	Active    bool   `json:"active"`
}

// Guard produces middleware that admits a request only when its principal is
// granted res.
type Guard interface {
	Require(res Resource) func(http.Handler) http.Handler
}
