// Package policy decides, per (actor, resource, action), whether an
// operation is permitted. All functions are pure: they read the models they
// are handed, mutate nothing, and always return the same decision for the
// same inputs. Every denial carries a reason tag for audit logging.
package policy

import "github.com/dmitrijs2005/vaultshare/internal/server/models"

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Reason tags. Deny reasons state what blocked the operation; allow reasons
// state what granted it.
const (
	ReasonSelfDelete          = "self-delete"
	ReasonPrivilegeEscalation = "privilege-escalation"
	ReasonNotOwner            = "not-owner"
	ReasonStaffOwned          = "staff-owned"
	ReasonPeerOwned           = "peer-owned"

	ReasonOwner      = "owner"
	ReasonSuperuser  = "superuser"
	ReasonStaff      = "staff"
	ReasonPermitted  = "permitted"
	ReasonShareGrant = "share-grant"
)

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// CanDeleteAccount reports whether actor may delete the target account.
// Self-deletion is always denied, whatever the actor's privileges. A staff
// target may only be removed by a superuser.
func CanDeleteAccount(actor, target *models.User) Decision {
	if actor.ID == target.ID {
		return deny(ReasonSelfDelete)
	}
	if target.IsStaff {
		if actor.IsSuperuser {
			return allow(ReasonSuperuser)
		}
		return deny(ReasonPrivilegeEscalation)
	}
	return allow(ReasonPermitted)
}

// CanDeleteFile reports whether actor may delete a file owned by owner.
// Checks are evaluated in precedence order: superuser, staff, manager,
// plain user.
func CanDeleteFile(actor, owner *models.User) Decision {
	if actor.IsSuperuser {
		return allow(ReasonSuperuser)
	}
	if actor.IsStaff {
		if owner.IsStaff && owner.ID != actor.ID {
			return deny(ReasonStaffOwned)
		}
		return allow(ReasonStaff)
	}
	if actor.Role == models.RoleManager {
		if owner.IsStaff {
			return deny(ReasonStaffOwned)
		}
		if owner.Role == models.RoleManager && owner.ID != actor.ID {
			return deny(ReasonPeerOwned)
		}
		return allow(ReasonPermitted)
	}
	if owner.ID == actor.ID {
		return allow(ReasonOwner)
	}
	return deny(ReasonNotOwner)
}

// CanDownloadFile reports whether actor may read the given file. The owner
// may always read; anyone else needs a share grant for this exact file that
// names them as the recipient. A grant stays readable after its first
// download: Downloaded only records the one-time "downloaded" signal.
func CanDownloadFile(actor *models.User, file *models.File, grant *models.FileShare) Decision {
	if actor.ID == file.OwnerID {
		return allow(ReasonOwner)
	}
	if grant != nil && grant.FileID == file.ID && grant.RecipientID == actor.ID {
		return allow(ReasonShareGrant)
	}
	return deny(ReasonNotOwner)
}
