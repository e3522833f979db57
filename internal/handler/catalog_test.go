package handler_test

import (
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/resilient-client/internal/catalog"
	"github.com/angeloszaimis/resilient-client/internal/handler"
)

var _ = Describe("Catalog routes", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
	})

	AfterEach(func() {
		h.close()
	})

	It("should list video uploads", func() {
		w := h.serve(http.MethodGet, "/v1/videos?user_id=u1", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		var res catalog.Response[[]catalog.VideoUpload]
		Expect(sonic.Unmarshal(w.Body.Bytes(), &res)).To(Succeed())
		Expect(res.Data).To(HaveLen(1))
		Expect(res.Data[0].Status).To(Equal(catalog.VideoCompleted))
		Expect(res.Backend).To(Equal("primary"))
	})

	It("should return detected objects with their boxes", func() {
		w := h.serve(http.MethodGet, "/v1/videos/v1/detections", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		var res catalog.Response[[]catalog.DetectedObject]
		Expect(sonic.Unmarshal(w.Body.Bytes(), &res)).To(Succeed())
		Expect(res.Data[0].BoundingBox.Width()).To(Equal(10.0))
	})

	It("should return matched products", func() {
		w := h.serve(http.MethodGet, "/v1/detections/d1/products", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"similarity_score":0.97`))
	})

	It("should read the service health document", func() {
		w := h.serve(http.MethodGet, "/v1/health", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"database":"ok"`))
	})

	It("should mark stale answers", func() {
		Expect(h.serve(http.MethodGet, "/v1/videos", nil).Code).To(Equal(http.StatusOK))
		h.backend.failing.Store(true)

		w := h.serve(http.MethodGet, "/v1/videos", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get(handler.HeaderCache)).To(Equal(handler.CacheStale))
		Expect(w.Body.String()).To(ContainSubstring(`"stale":true`))
	})

	Describe("PATCH /v1/videos/:id", func() {
		It("should update the status", func() {
			w := h.serve(http.MethodPatch, "/v1/videos/v1", strings.NewReader(`{"status":"failed"}`))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"status":"failed"`))
		})

		It("should reject unknown statuses before calling the backend", func() {
			w := h.serve(http.MethodPatch, "/v1/videos/v1", strings.NewReader(`{"status":"archived"}`))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(h.backend.hits.Load()).To(BeZero())
		})

		It("should reject a missing status", func() {
			w := h.serve(http.MethodPatch, "/v1/videos/v1", strings.NewReader(`{}`))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("catalog writes", func() {
		It("should create a video upload", func() {
			w := h.serve(http.MethodPost, "/v1/videos", strings.NewReader(`{"user_id":"u1","video_path":"b.mp4"}`))

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(w.Body.String()).To(ContainSubstring(`"id":"v2"`))
			Expect(w.Header().Get(handler.HeaderCache)).To(Equal(handler.CacheMiss))
		})

		It("should create a detection under its video", func() {
			w := h.serve(http.MethodPost, "/v1/videos/v1/detections", strings.NewReader(`{"label":"bag","bbox":{"x1":0,"y1":0,"x2":5,"y2":5}}`))

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(w.Body.String()).To(ContainSubstring(`"id":"d2"`))
		})

		It("should create a matched product under its detection", func() {
			w := h.serve(http.MethodPost, "/v1/detections/d1/products", strings.NewReader(`{"label":"bag"}`))

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(w.Body.String()).To(ContainSubstring(`"match_type":"auto"`))
		})

		It("should reject incomplete uploads before calling the backend", func() {
			w := h.serve(http.MethodPost, "/v1/videos", strings.NewReader(`{"user_id":"u1"}`))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(h.backend.hits.Load()).To(BeZero())
		})

		It("should never answer a write from cache", func() {
			Expect(h.serve(http.MethodPost, "/v1/videos", strings.NewReader(`{"user_id":"u1","video_path":"b.mp4"}`)).Code).To(Equal(http.StatusCreated))
			h.backend.failing.Store(true)

			w := h.serve(http.MethodPost, "/v1/videos", strings.NewReader(`{"user_id":"u1","video_path":"b.mp4"}`))

			Expect(w.Code).NotTo(Equal(http.StatusCreated))
			Expect(w.Header().Get(handler.HeaderCache)).NotTo(Equal(handler.CacheStale))
			Expect(h.backend.hits.Load()).To(BeNumerically(">=", 2))
		})
	})
})
