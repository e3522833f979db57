package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/angeloszaimis/resilient-client/internal/catalog"
	"github.com/angeloszaimis/resilient-client/internal/transport"
)

type statusUpdate struct {
	Status catalog.VideoStatus `json:"status" binding:"required"`
}

type uploadCreate struct {
	UserID    string `json:"user_id" binding:"required"`
	VideoPath string `json:"video_path" binding:"required"`
}

type detectionCreate struct {
	Label       string              `json:"label" binding:"required"`
	BoundingBox catalog.BoundingBox `json:"bbox"`
	CropPath    string              `json:"crop_path"`
}

type productCreate struct {
	Label         string `json:"label" binding:"required"`
	MatchType     string `json:"match_type"`
	AffiliateLink string `json:"affiliate_link"`
}

// ListVideos GET /v1/videos?user_id=
func (g *Gateway) ListVideos(c *gin.Context) {
	res, err := g.catalog.ListVideoUploads(c.Request.Context(), c.Query("user_id"))
	respondCatalog(c, res, err)
}

// DetectedObjects GET /v1/videos/:id/detections
func (g *Gateway) DetectedObjects(c *gin.Context) {
	res, err := g.catalog.GetDetectedObjects(c.Request.Context(), c.Param("id"))
	respondCatalog(c, res, err)
}

// MatchedProducts GET /v1/detections/:id/products
func (g *Gateway) MatchedProducts(c *gin.Context) {
	res, err := g.catalog.GetMatchedProducts(c.Request.Context(), c.Param("id"))
	respondCatalog(c, res, err)
}

// ServiceHealth GET /v1/health
func (g *Gateway) ServiceHealth(c *gin.Context) {
	res, err := g.catalog.ServiceHealth(c.Request.Context())
	respondCatalog(c, res, err)
}

// UpdateVideoStatus PATCH /v1/videos/:id
func (g *Gateway) UpdateVideoStatus(c *gin.Context) {
	var req statusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorMsg(c, http.StatusBadRequest, "status is required")
		return
	}

	switch req.Status {
	case catalog.VideoProcessing, catalog.VideoCompleted, catalog.VideoFailed:
	default:
		respondErrorMsg(c, http.StatusBadRequest, "unknown video status")
		return
	}

	res, err := g.catalog.UpdateVideoStatus(c.Request.Context(), c.Param("id"), req.Status)
	respondCatalog(c, res, err)
}

// CreateVideo POST /v1/videos
func (g *Gateway) CreateVideo(c *gin.Context) {
	var req uploadCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorMsg(c, http.StatusBadRequest, "user_id and video_path are required")
		return
	}

	res, err := g.catalog.CreateVideoUpload(c.Request.Context(), catalog.NewVideoUpload{UserID: req.UserID, VideoPath: req.VideoPath})
	respondCatalogCode(c, http.StatusCreated, res, err)
}

// CreateDetection POST /v1/videos/:id/detections
func (g *Gateway) CreateDetection(c *gin.Context) {
	var req detectionCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorMsg(c, http.StatusBadRequest, "label is required")
		return
	}

	res, err := g.catalog.CreateDetection(c.Request.Context(), c.Param("id"), catalog.NewDetection{
		Label:       req.Label,
		BoundingBox: req.BoundingBox,
		CropPath:    req.CropPath,
	})
	respondCatalogCode(c, http.StatusCreated, res, err)
}

// CreateMatchedProduct POST /v1/detections/:id/products
func (g *Gateway) CreateMatchedProduct(c *gin.Context) {
	var req productCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorMsg(c, http.StatusBadRequest, "label is required")
		return
	}

	res, err := g.catalog.CreateMatchedProduct(c.Request.Context(), c.Param("id"), catalog.NewMatchedProduct{
		Label:         req.Label,
		MatchType:     req.MatchType,
		AffiliateLink: req.AffiliateLink,
	})
	respondCatalogCode(c, http.StatusCreated, res, err)
}

func respondCatalog[T any](c *gin.Context, res catalog.Response[T], err error) {
	respondCatalogCode(c, http.StatusOK, res, err)
}

func respondCatalogCode[T any](c *gin.Context, code int, res catalog.Response[T], err error) {
	if err != nil {
		respondError(c, err, res.RequestID)
		return
	}

	switch {
	case res.Stale:
		c.Header(HeaderCache, CacheStale)
	case res.FromCache:
		c.Header(HeaderCache, CacheHit)
	default:
		c.Header(HeaderCache, CacheMiss)
	}
	if res.RequestID != "" {
		c.Header(transport.HeaderRequestID, res.RequestID)
	}
	c.JSON(code, res)
}
