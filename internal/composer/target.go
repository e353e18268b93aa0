package composer

import "fmt"

type targetKind int

const (
	targetInvalid targetKind = iota
	targetSingle
	targetRole
)

// SendTarget addresses a message at either one recipient or every
// member of a role. The zero value is invalid; use the constructors.
type SendTarget struct {
	kind        targetKind
	recipientID string
	roleName    string
}

// SingleRecipient targets one identity by id.
func SingleRecipient(id string) SendTarget {
	return SendTarget{kind: targetSingle, recipientID: id}
}

// RoleBroadcast targets every current member of a role. Membership is
// resolved once when the send starts; identities joining the role
// mid-send are not included.
func RoleBroadcast(roleName string) SendTarget {
	return SendTarget{kind: targetRole, roleName: roleName}
}

// IsBroadcast reports whether the target fans out to a role.
func (t SendTarget) IsBroadcast() bool { return t.kind == targetRole }

// RecipientID returns the single recipient id, or "" for broadcasts.
func (t SendTarget) RecipientID() string { return t.recipientID }

// RoleName returns the targeted role, or "" for single sends.
func (t SendTarget) RoleName() string { return t.roleName }

func (t SendTarget) String() string {
	switch t.kind {
	case targetSingle:
		return fmt.Sprintf("recipient:%s", t.recipientID)
	case targetRole:
		return fmt.Sprintf("role:%s", t.roleName)
	default:
		return "invalid"
	}
}
