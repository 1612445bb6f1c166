package domain

// OperatorRole scopes what an authenticated operator may do.
type OperatorRole string

const (
	OperatorRoleAgent OperatorRole = "agent"
	OperatorRoleAdmin OperatorRole = "admin"
)

// Valid reports whether r is a known role.
func (r OperatorRole) Valid() bool {
	return r == OperatorRoleAgent || r == OperatorRoleAdmin
}
