// Package access decides which actor may perform which action on a listing or an order.
package access

import "errors"

var (
	ErrUnauthenticated = errors.New("access: unauthenticated")
	ErrForbidden       = errors.New("access: forbidden")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) Authenticated() bool { return a.UserID != "" }

func (a Actor) Admin() bool { return a.Role == RoleAdmin }

type Action string

const (
	ActionProductCreate   Action = "product:create"
	ActionProductUpdate   Action = "product:update"
	ActionProductDelete   Action = "product:delete"
	ActionProductPurchase Action = "product:purchase"
	ActionOrderView       Action = "order:view"
	ActionOrderCancel     Action = "order:cancel"
)

// Resource names the parties of the object being acted on. Products set OwnerID; orders set BuyerID and SellerID.
type Resource struct {
	OwnerID  string
	BuyerID  string
	SellerID string
}

// Authorize reports whether actor may perform action on resource.
func Authorize(actor Actor, action Action, res Resource) bool {
	if !actor.Authenticated() {
		return false
	}
	switch action {
	case ActionProductCreate:
		return true
	case ActionProductPurchase:
		// nobody buys their own listing, admins included
		return res.OwnerID != actor.UserID
	case ActionProductUpdate, ActionProductDelete:
		return actor.Admin() || res.OwnerID == actor.UserID
	case ActionOrderView:
		return actor.Admin() || res.BuyerID == actor.UserID || res.SellerID == actor.UserID
	case ActionOrderCancel:
		return actor.Admin() || res.BuyerID == actor.UserID
	default:
		return false
	}
}
