package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/readmirror/readmirror/internal/entities"
	"github.com/readmirror/readmirror/internal/remote"
	"github.com/readmirror/readmirror/internal/syncer"
)

// BookmarksController serves the bookmark CRUD endpoints on top of the
// sync orchestrator.
type BookmarksController struct {
	service BookmarkService
}

func NewBookmarksController(service BookmarkService) *BookmarksController {
	return &BookmarksController{service: service}
}

// List handles GET /api/bookmarks.
func (bc *BookmarksController) List(c *gin.Context) {
	params := syncer.ListParams{
		Search:      c.Query("search"),
		WithContent: c.Query("with_content") == "true",
	}

	if v, ok := parseBoolQuery(c, "archived"); ok {
		params.Archived = &v
	}
	if v, ok := parseBoolQuery(c, "favorite"); ok {
		params.Favorite = &v
	}
	if v, ok := parseBoolQuery(c, "read"); ok {
		params.Read = &v
	}
	if tags := c.Query("tags"); tags != "" {
		params.Tags = strings.Split(tags, ",")
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		params.Page = page
	}
	if perPage, err := strconv.Atoi(c.Query("per_page")); err == nil && perPage > 0 {
		params.PerPage = perPage
	}

	page, err := bc.service.FetchList(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, page)
}

// Get handles GET /api/bookmarks/:id.
func (bc *BookmarksController) Get(c *gin.Context) {
	bookmark, err := bc.service.GetOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, bookmark)
}

// Create handles POST /api/bookmarks.
func (bc *BookmarksController) Create(c *gin.Context) {
	var payload remote.CreatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if payload.URL == "" {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	bookmark, err := bc.service.Create(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, bookmark)
}

// Update handles PATCH /api/bookmarks/:id.
func (bc *BookmarksController) Update(c *gin.Context) {
	var patch entities.BookmarkPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if patch.IsEmpty() {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "patch sets no fields"})
		return
	}

	bookmark, err := bc.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, bookmark)
}

// Delete handles DELETE /api/bookmarks/:id.
func (bc *BookmarksController) Delete(c *gin.Context) {
	if err := bc.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseBoolQuery(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
