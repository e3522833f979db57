package handler

import "github.com/gin-gonic/gin"

// Routes registers the gateway, admin and catalog endpoints on r.
func (g *Gateway) Routes(r gin.IRouter) {
	r.Any("/api/*path", g.Proxy)

	r.GET("/status", g.Status)
	r.GET("/metrics", g.Metrics)
	r.GET("/metrics/prometheus", g.Prometheus)
	r.GET("/config", g.GetConfig)
	r.PUT("/config", g.UpdateConfig)

	if g.catalog == nil {
		return
	}
	v1 := r.Group("/v1")
	v1.GET("/health", g.ServiceHealth)
	v1.GET("/videos", g.ListVideos)
	v1.POST("/videos", g.CreateVideo)
	v1.PATCH("/videos/:id", g.UpdateVideoStatus)
	v1.GET("/videos/:id/detections", g.DetectedObjects)
	v1.POST("/videos/:id/detections", g.CreateDetection)
	v1.GET("/detections/:id/products", g.MatchedProducts)
	v1.POST("/detections/:id/products", g.CreateMatchedProduct)
}
