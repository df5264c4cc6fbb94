package model

// Role identifies the kind of authenticated caller.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// AdminScope is the set of domains an admin may manage.
// The zero value allows nothing.
type AdminScope struct {
	all     bool
	domains []Domain
}

// AllDomainsScope grants access to every domain.
func AllDomainsScope() AdminScope {
	return AdminScope{all: true}
}

// DomainSetScope grants access to the given domains only. Unknown and
// duplicate domains are dropped.
func DomainSetScope(domains ...Domain) AdminScope {
	seen := make(map[Domain]bool, len(domains))
	set := make([]Domain, 0, len(domains))
	for _, d := range domains {
		if !d.Valid() || seen[d] {
			continue
		}
		seen[d] = true
		set = append(set, d)
	}
	return AdminScope{domains: set}
}

// ResolveScope builds the scope stored on an admin account. An account with
// no restricting domains manages all of them.
func ResolveScope(allDomains bool, domains []Domain) AdminScope {
	if allDomains {
		return AllDomainsScope()
	}
	scope := DomainSetScope(domains...)
	if len(scope.domains) == 0 {
		return AllDomainsScope()
	}
	return scope
}

// IsAll reports whether the scope covers every domain.
func (s AdminScope) IsAll() bool { return s.all }

// Allows reports whether the scope covers d.
func (s AdminScope) Allows(d Domain) bool {
	if s.all {
		return d.Valid()
	}
	for _, allowed := range s.domains {
		if allowed == d {
			return true
		}
	}
	return false
}

// Domains returns the concrete domains covered by the scope.
func (s AdminScope) Domains() []Domain {
	if s.all {
		out := make([]Domain, len(AllDomains))
		copy(out, AllDomains)
		return out
	}
	out := make([]Domain, len(s.domains))
	copy(out, s.domains)
	return out
}

// Principal is the authenticated caller passed explicitly to every service call.
type Principal struct {
	UserID int
	Role   Role
	Scope  AdminScope
}

// StudentPrincipal builds a principal for a student account.
func StudentPrincipal(userID int) Principal {
	return Principal{UserID: userID, Role: RoleStudent}
}

// AdminPrincipal builds a principal for an admin account.
func AdminPrincipal(adminID int, scope AdminScope) Principal {
	return Principal{UserID: adminID, Role: RoleAdmin, Scope: scope}
}

func (p Principal) IsStudent() bool { return p.Role == RoleStudent }

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanManage reports whether the principal is an admin whose scope covers d.
func (p Principal) CanManage(d Domain) bool {
	return p.IsAdmin() && p.Scope.Allows(d)
}
