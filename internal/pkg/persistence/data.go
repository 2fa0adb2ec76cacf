package persistence

import "time"

// Job is the central record of one transcription request.
// JSON field names follow the wire format of the API
type Job struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	OriginalFilename string     `json:"original_filename"`
	StoredPath       string     `json:"stored_path"`
	OutputPath       string     `json:"output_path,omitempty"`
	Error            string     `json:"error,omitempty"`
	// Transcription holds a preview of the transcript, truncated to 1000 runes
	Transcription string `json:"transcription,omitempty"`
}

// Clone returns a deep copy of the job
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	res := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		res.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		res.CompletedAt = &t
	}
	return &res
}
