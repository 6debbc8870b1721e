package auth

// Role names as issued by the backend. A user carries exactly one.
const (
	RoleAdmin          = "Admin"
	RoleProcurementMgr = "ProcurementMgr"
	RoleProcurement    = "Procurement"
	RoleAccountant     = "Accountant"
	RoleEveryone       = "Everyone"
)

// roleSatisfies reports whether the held role grants the required one.
// Admin satisfies every requirement; Everyone is satisfied by any role.
func roleSatisfies(held, required string) bool {
	if held == RoleAdmin {
		return true
	}
	if required == RoleEveryone {
		return true
	}
	return held == required
}
