package services

import (
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/auth"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// Authorizer decides whether an actor may change a record owned by ownerID.
type Authorizer interface {
	MayMutate(actor auth.Actor, ownerID utils.SixID) bool
}

// OwnerOrAdmin allows the owner and any admin.
type OwnerOrAdmin struct{}

func (OwnerOrAdmin) MayMutate(actor auth.Actor, ownerID utils.SixID) bool {
	if actor.IsAnonymous() {
		return false
	}
	return actor.IsAdmin || actor.UserID == ownerID
}
