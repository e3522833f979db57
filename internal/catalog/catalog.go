package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"

	"github.com/angeloszaimis/resilient-client/internal/adapter"
)

// Requester is satisfied by *adapter.Client.
type Requester interface {
	Request(ctx context.Context, spec adapter.RequestSpec) (adapter.Result, error)
}

type Catalog struct {
	client Requester
	policy adapter.Policy
}

// New returns a catalog whose reads use policy. An empty policy means
// network-first.
func New(client Requester, policy adapter.Policy) *Catalog {
	if policy == "" {
		policy = adapter.PolicyNetworkFirst
	}
	return &Catalog{client: client, policy: policy}
}

func (c *Catalog) ListVideoUploads(ctx context.Context, userID string) (Response[[]VideoUpload], error) {
	params := url.Values{}
	if userID != "" {
		params.Set("user_id", userID)
	}
	return get[[]VideoUpload](ctx, c, "/videos", params, ClassVideos)
}

func (c *Catalog) GetDetectedObjects(ctx context.Context, videoID string) (Response[[]DetectedObject], error) {
	if videoID == "" {
		return Response[[]DetectedObject]{}, fmt.Errorf("video id is required")
	}
	return get[[]DetectedObject](ctx, c, "/videos/"+videoID+"/detections", nil, ClassDetections)
}

func (c *Catalog) GetMatchedProducts(ctx context.Context, detectionID string) (Response[[]MatchedProduct], error) {
	if detectionID == "" {
		return Response[[]MatchedProduct]{}, fmt.Errorf("detection id is required")
	}
	return get[[]MatchedProduct](ctx, c, "/detections/"+detectionID+"/products", nil, ClassProducts)
}

// ServiceHealth reads the backend status document. It is always fetched from
// the network first.
func (c *Catalog) ServiceHealth(ctx context.Context) (Response[ServiceHealth], error) {
	return get[ServiceHealth](ctx, c, "/health", nil, ClassHealth)
}

// UpdateVideoStatus is a write and is never cached.
func (c *Catalog) UpdateVideoStatus(ctx context.Context, videoID string, status VideoStatus) (Response[VideoUpload], error) {
	if videoID == "" {
		return Response[VideoUpload]{}, fmt.Errorf("video id is required")
	}
	return write[VideoUpload](ctx, c, http.MethodPatch, "/videos/"+videoID, map[string]VideoStatus{"status": status}, ClassVideos)
}

// CreateVideoUpload records a new upload. Uploads start out processing unless
// the caller says otherwise.
func (c *Catalog) CreateVideoUpload(ctx context.Context, upload NewVideoUpload) (Response[VideoUpload], error) {
	if upload.UserID == "" || upload.VideoPath == "" {
		return Response[VideoUpload]{}, fmt.Errorf("user id and video path are required")
	}
	if upload.Status == "" {
		upload.Status = VideoProcessing
	}
	return write[VideoUpload](ctx, c, http.MethodPost, "/videos", upload, ClassVideos)
}

func (c *Catalog) CreateDetection(ctx context.Context, videoID string, detection NewDetection) (Response[DetectedObject], error) {
	if videoID == "" {
		return Response[DetectedObject]{}, fmt.Errorf("video id is required")
	}
	if detection.Label == "" {
		return Response[DetectedObject]{}, fmt.Errorf("label is required")
	}
	detection.VideoID = videoID
	return write[DetectedObject](ctx, c, http.MethodPost, "/videos/"+videoID+"/detections", detection, ClassDetections)
}

// CreateMatchedProduct links a product to a detection. The match type
// defaults to auto.
func (c *Catalog) CreateMatchedProduct(ctx context.Context, detectionID string, product NewMatchedProduct) (Response[MatchedProduct], error) {
	if detectionID == "" {
		return Response[MatchedProduct]{}, fmt.Errorf("detection id is required")
	}
	if product.Label == "" {
		return Response[MatchedProduct]{}, fmt.Errorf("label is required")
	}
	if product.MatchType == "" {
		product.MatchType = MatchAuto
	}
	product.DetectionID = detectionID
	return write[MatchedProduct](ctx, c, http.MethodPost, "/detections/"+detectionID+"/products", product, ClassProducts)
}

func write[T any](ctx context.Context, c *Catalog, method, path string, payload any, class string) (Response[T], error) {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return Response[T]{}, fmt.Errorf("encode request: %w", err)
	}

	res, err := c.client.Request(ctx, adapter.RequestSpec{
		Method: method,
		Path:   path,
		Body:   body,
		Class:  class,
	})
	if err != nil {
		return Response[T]{}, err
	}
	return decode[T](res)
}

func get[T any](ctx context.Context, c *Catalog, path string, params url.Values, class string) (Response[T], error) {
	policy := c.policy
	if class == ClassHealth {
		policy = adapter.PolicyNetworkFirst
	}

	res, err := c.client.Request(ctx, adapter.RequestSpec{
		Method: http.MethodGet,
		Path:   path,
		Params: params,
		Class:  class,
		Policy: policy,
	})
	if err != nil {
		return Response[T]{}, err
	}
	return decode[T](res)
}

func decode[T any](res adapter.Result) (Response[T], error) {
	out := Response[T]{
		Stale:     res.Stale,
		FromCache: res.FromCache,
		Backend:   res.Target,
		RequestID: res.RequestID,
	}
	if len(res.Payload) == 0 {
		return out, nil
	}
	if err := sonic.Unmarshal(res.Payload, &out.Data); err != nil {
		return Response[T]{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
