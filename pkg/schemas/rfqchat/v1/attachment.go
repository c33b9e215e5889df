package rfqchat

type AttachmentStatus string

const (
	// Client-side only: the multipart upload is still in flight. The owning
	// message may already be SENT; upload progresses independently.
	AttachmentUploading AttachmentStatus = "uploading"
	AttachmentDelivered AttachmentStatus = "delivered"
	AttachmentFailed    AttachmentStatus = "failed"
)

type AttachmentV1 struct {
	// Client-generated id; correlates the upload with its status event.
	UniqueID string           `json:"unique_id"`
	FileName string           `json:"file_name"`
	FileType string           `json:"file_type"`
	Status   AttachmentStatus `json:"status"`

	// Absent until the upload completes.
	FilePath     string `json:"file_path,omitempty"`
	PresignedURL string `json:"presigned_url,omitempty"`
}
