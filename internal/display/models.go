package display

import "time"

// MediaID identifies an uploaded media item.
type MediaID int64

// FileType is the kind of media an item holds.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// Status is the moderation state of a media item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

// Attribution values for TimelineState.ChangedBy when no user is involved.
const (
	ChangedBySystem = "system"
	ChangedByAuto   = "system-auto"
)

// MediaEntry is one approved item as seen by the scheduler and display clients.
// Only ID, FileType and DurationSeconds influence scheduling.
type MediaEntry struct {
	ID              MediaID   `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	FileType        FileType  `json:"file_type"`
	DurationSeconds *float64  `json:"duration"`
	DisplayOrder    *int      `json:"display_order"`
	ApprovedAt      time.Time `json:"approved_at"`
	CreatedAt       time.Time `json:"created_at"`
	FileURL         string    `json:"file_url"`
	UploadedBy      string    `json:"uploaded_by,omitempty"`
	FullName        string    `json:"full_name,omitempty"`
}

// VideoState is the last playback position reported by a client for the
// current video. It is advisory; the server timer stays authoritative.
type VideoState struct {
	IsPlaying   bool      `json:"isPlaying"`
	CurrentTime float64   `json:"currentTime"`
	Duration    float64   `json:"duration"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// TimelineState is the single global playback position shared by all displays.
type TimelineState struct {
	// Epoch changes on every process start; clients use it to notice that
	// the timeline was reset by a restart.
	Epoch          string     `json:"epoch"`
	CurrentIndex   int        `json:"currentIndex"`
	CurrentMediaID *MediaID   `json:"currentMediaId"`
	StartTimestamp time.Time  `json:"startTimestamp"`
	LastUpdateTime time.Time  `json:"lastUpdateTime"`
	VideoState     VideoState `json:"videoState"`
	ChangedBy      string     `json:"changedBy"`
}

// clone returns a copy that shares no memory with s.
func (s TimelineState) clone() TimelineState {
	out := s
	if s.CurrentMediaID != nil {
		id := *s.CurrentMediaID
		out.CurrentMediaID = &id
	}
	return out
}

// TimeInfo lets clients place themselves on the timeline without trusting
// their own clocks.
type TimeInfo struct {
	ServerTime   time.Time `json:"serverTime"`
	ElapsedTime  float64   `json:"elapsedTime"`  // seconds since StartTimestamp
	ItemDuration float64   `json:"itemDuration"` // seconds allotted to the current item, 0 when idle
}

// View is the payload served to polling display clients.
type View struct {
	State    TimelineState `json:"state"`
	Media    []MediaEntry  `json:"media"`
	TimeInfo TimeInfo      `json:"timeInfo"`
}

// OrderUpdate assigns a display position to one item. A nil DisplayOrder
// moves the item back to the unordered tail.
type OrderUpdate struct {
	ID           MediaID `json:"id" validate:"required,gt=0"`
	DisplayOrder *int    `json:"display_order"`
}

// MediaPatch is a partial edit of a media item. Nil fields are left as is.
type MediaPatch struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Duration    *float64 `json:"duration" validate:"omitempty,gt=0,lte=86400"`
}

// Empty reports whether the patch changes nothing.
func (p MediaPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Duration == nil
}
