package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/auth"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/db"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

const (
	defaultCommentAuthor = "Usuario"
	maxCommentLength     = 2000
)

// CommentInput is what a viewer submits. Author identity comes from the actor.
type CommentInput struct {
	UserName  string `json:"user_name"`
	UserPhoto string `json:"user_photo"`
	Text      string `json:"text"`
}

// ICommentService manages the comments attached to listings.
type ICommentService interface {
	Add(ctx context.Context, actor auth.Actor, listingID utils.SixID, input CommentInput) (*models.Comment, error)
	// List returns the listing's comments, newest first.
	List(ctx context.Context, listingID utils.SixID) ([]models.Comment, error)
	Delete(ctx context.Context, actor auth.Actor, listingID, commentID utils.SixID) error
	// PurgeListing removes every comment of a listing and reports how many were removed.
	PurgeListing(ctx context.Context, listingID utils.SixID) (int64, error)
}

type commentService struct {
	store      db.DocumentStore
	authorizer Authorizer
	now        func() time.Time
}

func NewCommentService(store db.DocumentStore, authorizer Authorizer) ICommentService {
	return &commentService{
		store:      store,
		authorizer: authorizer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *commentService) Add(ctx context.Context, actor auth.Actor, listingID utils.SixID, input CommentInput) (*models.Comment, error) {
	if actor.IsAnonymous() {
		return nil, ErrForbidden
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "required"}
	}
	if len([]rune(text)) > maxCommentLength {
		return nil, &ValidationError{Field: "text", Reason: fmt.Sprintf("at most %d characters", maxCommentLength)}
	}

	if _, err := s.store.FindRecord(ctx, db.ListingsCollection, listingID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrListingNotFound
		}
		return nil, &StoreReadError{Op: "find listing", Err: err}
	}

	userName := strings.TrimSpace(input.UserName)
	if userName == "" {
		userName = actor.Name
	}
	if userName == "" {
		userName = defaultCommentAuthor
	}

	comment := &models.Comment{
		ListingID: listingID,
		UserID:    actor.UserID,
		UserName:  userName,
		UserPhoto: input.UserPhoto,
		Text:      text,
		CreatedAt: s.now(),
	}
	fields := bson.M{
		"listing_id": comment.ListingID,
		"user_id":    comment.UserID,
		"user_name":  comment.UserName,
		"text":       comment.Text,
		"created_at": comment.CreatedAt,
	}
	if comment.UserPhoto != "" {
		fields["user_photo"] = comment.UserPhoto
	}

	id, err := s.store.CreateRecord(ctx, db.CommentsCollection, fields)
	if err != nil {
		return nil, &StoreWriteError{Op: "add comment", Err: err}
	}
	comment.ID = id
	return comment, nil
}

func (s *commentService) List(ctx context.Context, listingID utils.SixID) ([]models.Comment, error) {
	records, err := s.store.FindRecords(ctx, db.CommentsCollection, bson.M{"listing_id": listingID}, db.Order{Key: createdAtField, Descending: true})
	if err != nil {
		return nil, &StoreReadError{Op: "list comments", Err: err}
	}
	comments := make([]models.Comment, 0, len(records))
	for _, raw := range records {
		var c models.Comment
		if err := bson.Unmarshal(raw, &c); err != nil {
			return nil, &StoreReadError{Op: "decode comment", Err: err}
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// Delete removes a comment. Its author and admins may delete it.
func (s *commentService) Delete(ctx context.Context, actor auth.Actor, listingID, commentID utils.SixID) error {
	if actor.IsAnonymous() {
		return ErrForbidden
	}
	raw, err := s.store.FindRecord(ctx, db.CommentsCollection, commentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrCommentNotFound
		}
		return &StoreReadError{Op: "find comment", Err: err}
	}
	var c models.Comment
	if err := bson.Unmarshal(raw, &c); err != nil {
		return &StoreReadError{Op: "decode comment", Err: err}
	}
	if c.ListingID != listingID {
		return ErrCommentNotFound
	}
	if !s.authorizer.MayMutate(actor, c.UserID) {
		return ErrForbidden
	}

	if err := s.store.DeleteRecord(ctx, db.CommentsCollection, commentID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrCommentNotFound
		}
		return &StoreWriteError{Op: "delete comment", ID: commentID, Err: err}
	}
	return nil
}

func (s *commentService) PurgeListing(ctx context.Context, listingID utils.SixID) (int64, error) {
	n, err := s.store.DeleteRecords(ctx, db.CommentsCollection, bson.M{"listing_id": listingID})
	if err != nil {
		return 0, &StoreWriteError{Op: "purge comments", ID: listingID, Err: err}
	}
	return n, nil
}
