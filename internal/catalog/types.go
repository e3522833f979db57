package catalog

import "time"

const (
	ClassHealth     = "health"
	ClassVideos     = "videos"
	ClassDetections = "detections"
	ClassProducts   = "products"
)

type VideoStatus string

const (
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
)

type VideoUpload struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	VideoPath string      `json:"video_path"`
	Status    VideoStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BoundingBox) Width() float64  { return b.X2 - b.X1 }
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

type DetectedObject struct {
	ID           string      `json:"id"`
	VideoID      string      `json:"video_id"`
	Label        string      `json:"label"`
	Confidence   float64     `json:"confidence"`
	BoundingBox  BoundingBox `json:"bbox"`
	CropImageURL string      `json:"crop_image_url,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type MatchedProduct struct {
	ID              string  `json:"id"`
	DetectionID     string  `json:"detection_id"`
	Label           string  `json:"label"`
	Brand           string  `json:"brand,omitempty"`
	MatchType       string  `json:"match_type"`
	SimilarityScore float64 `json:"similarity_score"`
	AffiliateLink   string  `json:"affiliate_link,omitempty"`
}

const MatchAuto = "auto"

type NewVideoUpload struct {
	UserID    string      `json:"user_id"`
	VideoPath string      `json:"video_path"`
	Status    VideoStatus `json:"status"`
}

type NewDetection struct {
	VideoID     string      `json:"video_id"`
	Label       string      `json:"label"`
	BoundingBox BoundingBox `json:"bbox"`
	CropPath    string      `json:"crop_path,omitempty"`
}

type NewMatchedProduct struct {
	DetectionID   string `json:"detection_id"`
	Label         string `json:"label"`
	MatchType     string `json:"match_type"`
	AffiliateLink string `json:"affiliate_link,omitempty"`
}

type ServiceHealth struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// Response carries decoded data and where it came from.
type Response[T any] struct {
	Data      T      `json:"data"`
	Stale     bool   `json:"stale"`
	FromCache bool   `json:"fromCache"`
	Backend   string `json:"backend,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}
