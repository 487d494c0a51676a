package models

import (
	"time"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// Comment is a viewer note attached to a listing. Comments are never edited.
type Comment struct {
	ID        utils.SixID `bson:"_id" json:"id"`
	ListingID utils.SixID `bson:"listing_id" json:"listing_id"`
	UserID    utils.SixID `bson:"user_id" json:"user_id"`
	UserName  string      `bson:"user_name" json:"user_name"`
	UserPhoto string      `bson:"user_photo,omitempty" json:"user_photo,omitempty"`
	Text      string      `bson:"text" json:"text"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}
