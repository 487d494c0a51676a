package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api/handlers"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/api/middleware"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/auth"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

func setupCommentRouter(svc services.ICommentService, actor auth.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewRestCommentHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextKeyActor, actor) })
	r.GET("/v1/listings/:id/comments", handler.ListComments)
	r.POST("/v1/listings/:id/comments", handler.AddComment)
	r.DELETE("/v1/listings/:id/comments/:commentId", handler.DeleteComment)
	return r
}

func TestRestCommentHandler_ListComments(t *testing.T) {
	svc := new(MockCommentService)
	listingID := utils.NewSixID()
	comments := []models.Comment{
		{ID: utils.NewSixID(), ListingID: listingID, Text: "segundo", CreatedAt: time.Now()},
		{ID: utils.NewSixID(), ListingID: listingID, Text: "primero", CreatedAt: time.Now().Add(-time.Hour)},
	}
	svc.On("List", mock.Anything, listingID).Return(comments, nil)

	w := httptest.NewRecorder()
	setupCommentRouter(svc, auth.Anonymous()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/listings/"+listingID.String()+"/comments", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []models.Comment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "segundo", resp.Data[0].Text)
}

func TestRestCommentHandler_AddComment(t *testing.T) {
	svc := new(MockCommentService)
	actor := auth.Actor{UserID: utils.NewSixID(), Name: "Lucía"}
	listingID := utils.NewSixID()
	input := services.CommentInput{Text: "¿Acepta permuta?"}
	svc.On("Add", mock.Anything, actor, listingID, input).Return(&models.Comment{ID: utils.NewSixID(), Text: input.Text, UserName: "Lucía"}, nil)

	body, _ := json.Marshal(input)
	req := httptest.NewRequest(http.MethodPost, "/v1/listings/"+listingID.String()+"/comments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	setupCommentRouter(svc, actor).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestRestCommentHandler_AddComment_Errors(t *testing.T) {
	svc := new(MockCommentService)
	actor := auth.Actor{UserID: utils.NewSixID()}
	listingID := utils.NewSixID()
	svc.On("Add", mock.Anything, actor, listingID, mock.Anything).Return(nil, services.ErrListingNotFound)
	router := setupCommentRouter(svc, actor)

	req := httptest.NewRequest(http.MethodPost, "/v1/listings/"+listingID.String()+"/comments", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/listings/"+listingID.String()+"/comments", bytes.NewBufferString(`{"text":"hola"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestCommentHandler_DeleteComment(t *testing.T) {
	svc := new(MockCommentService)
	actor := auth.Actor{UserID: utils.NewSixID()}
	listingID, mine, theirs := utils.NewSixID(), utils.NewSixID(), utils.NewSixID()
	svc.On("Delete", mock.Anything, actor, listingID, mine).Return(nil)
	svc.On("Delete", mock.Anything, actor, listingID, theirs).Return(services.ErrForbidden)
	router := setupCommentRouter(svc, actor)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/listings/"+listingID.String()+"/comments/"+mine.String(), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/listings/"+listingID.String()+"/comments/"+theirs.String(), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/listings/"+listingID.String()+"/comments/bad", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
