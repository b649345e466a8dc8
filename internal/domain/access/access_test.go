package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	owner := Actor{UserID: "owner", Role: RoleUser}
	buyer := Actor{UserID: "buyer", Role: RoleUser}
	seller := Actor{UserID: "seller", Role: RoleUser}
	stranger := Actor{UserID: "stranger", Role: RoleUser}
	admin := Actor{UserID: "admin", Role: RoleAdmin}
	anonymous := Actor{}

	listing := Resource{OwnerID: "owner"}
	adminListing := Resource{OwnerID: "admin"}
	order := Resource{BuyerID: "buyer", SellerID: "seller"}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		want   bool
	}{
		{"anonymous cannot create", anonymous, ActionProductCreate, Resource{}, false},
		{"user creates", stranger, ActionProductCreate, Resource{}, true},
		{"owner updates", owner, ActionProductUpdate, listing, true},
		{"stranger cannot update", stranger, ActionProductUpdate, listing, false},
		{"admin updates any listing", admin, ActionProductUpdate, listing, true},
		{"owner deletes", owner, ActionProductDelete, listing, true},
		{"stranger cannot delete", stranger, ActionProductDelete, listing, false},
		{"admin deletes any listing", admin, ActionProductDelete, listing, true},
		{"owner cannot purchase", owner, ActionProductPurchase, listing, false},
		{"stranger purchases", stranger, ActionProductPurchase, listing, true},
		{"admin purchases others", admin, ActionProductPurchase, listing, true},
		{"admin cannot purchase own listing", admin, ActionProductPurchase, adminListing, false},
		{"anonymous cannot purchase", anonymous, ActionProductPurchase, listing, false},
		{"buyer views order", buyer, ActionOrderView, order, true},
		{"seller views order", seller, ActionOrderView, order, true},
		{"stranger cannot view order", stranger, ActionOrderView, order, false},
		{"admin views order", admin, ActionOrderView, order, true},
		{"buyer cancels order", buyer, ActionOrderCancel, order, true},
		{"seller cannot cancel order", seller, ActionOrderCancel, order, false},
		{"admin cancels order", admin, ActionOrderCancel, order, true},
		{"unknown action denied", admin, Action("product:teleport"), listing, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Authorize(tc.actor, tc.action, tc.res))
		})
	}
}
