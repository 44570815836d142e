package account

import "strings"

// Pages of the portal front end.
const (
	PageLanding   = "index.html"
	PageAdmin     = "admin.html"
	PageSecretary = "secretary.html"
	PageStudent   = "student.html"
)

var dashboards = map[Role]string{
	RoleAdmin:     PageAdmin,
	RoleSecretary: PageSecretary,
	RoleStudent:   PageStudent,
}

// DashboardFor maps a role to its dashboard; unknown roles land on the public page.
func DashboardFor(role Role) string {
	if page, ok := dashboards[role]; ok {
		return page
	}
	return PageLanding
}

// NormalizePage reduces a request path such as "/portal/admin.html?x=1" to "admin.html".
// The root path and the empty path become PageLanding.
func NormalizePage(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return PageLanding
	}
	return path
}

// IsPublicPage reports whether page can be seen without a session.
func IsPublicPage(page string) bool {
	return NormalizePage(page) == PageLanding
}

// PageRole returns the role owning a protected page.
func PageRole(page string) (Role, bool) {
	page = NormalizePage(page)
	for role, p := range dashboards {
		if p == page {
			return role, true
		}
	}
	return "", false
}
