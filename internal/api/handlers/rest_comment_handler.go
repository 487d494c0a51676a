package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api/middleware"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// RestCommentHandler handles REST requests for listing comments.
type RestCommentHandler struct {
	commentService services.ICommentService
}

func NewRestCommentHandler(commentService services.ICommentService) *RestCommentHandler {
	return &RestCommentHandler{commentService: commentService}
}

// ListComments handles GET /v1/listings/:id/comments
func (h *RestCommentHandler) ListComments(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	comments, err := h.commentService.List(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve comments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": comments})
}

// AddComment handles POST /v1/listings/:id/comments
func (h *RestCommentHandler) AddComment(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	var input services.CommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	comment, err := h.commentService.Add(c.Request.Context(), middleware.ActorFromContext(c), listingID, input)
	if err != nil {
		respondError(c, err, "Failed to add comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// DeleteComment handles DELETE /v1/listings/:id/comments/:commentId
func (h *RestCommentHandler) DeleteComment(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}
	commentID, err := utils.ParseSixID(c.Param("commentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID format"})
		return
	}

	if err := h.commentService.Delete(c.Request.Context(), middleware.ActorFromContext(c), listingID, commentID); err != nil {
		respondError(c, err, "Failed to delete comment")
		return
	}
	c.Status(http.StatusNoContent)
}
