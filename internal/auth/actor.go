package auth

import (
	"fmt"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// Actor is the identity a request acts as. The zero value is the anonymous visitor.
type Actor struct {
	UserID   utils.SixID
	IsAdmin  bool
	Name     string
	Whatsapp string
}

func Anonymous() Actor {
	return Actor{}
}

func (a Actor) IsAnonymous() bool {
	return a.UserID.IsZero()
}

// ActorFromClaims resolves validated claims into an Actor.
func ActorFromClaims(claims *Claims) (Actor, error) {
	if claims == nil {
		return Anonymous(), fmt.Errorf("no claims")
	}
	userID, err := utils.ParseSixID(claims.UserID)
	if err != nil {
		return Anonymous(), fmt.Errorf("invalid user_id claim: %w", err)
	}
	return Actor{UserID: userID, IsAdmin: claims.IsAdmin, Name: claims.Name, Whatsapp: claims.Whatsapp}, nil
}
