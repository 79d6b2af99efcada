package types

import "time"

// MaxProjectImages caps the number of images attached to a project.
const MaxProjectImages = 5

// Project represents a portfolio entry shown in the public gallery.
// Image bytes are never stored here; projects only reference URLs
// handed back by the object storage layer (or by an external upload).
type Project struct {
	// ID is the unique identifier of the project.
	ID string `json:"id" db:"id"`

	// Title is the human-readable name of the project.
	Title string `json:"title" db:"title"`

	// Description contains the full project write-up.
	Description string `json:"description" db:"description"`

	// ImageURLs is the ordered list of screenshot/image URLs, at most
	// MaxProjectImages entries.
	ImageURLs []string `json:"image_urls" db:"image_urls"`

	// TechStack is the ordered list of technology tags associated with
	// the project, used for filtering and display.
	TechStack []string `json:"tech_stack" db:"tech_stack"`

	// LiveURL is the optional URL of a deployed instance.
	LiveURL string `json:"live_url,omitempty" db:"live_url"`

	// RepoURL is the optional URL of the source repository.
	RepoURL string `json:"repo_url,omitempty" db:"repo_url"`

	// CreatedAt is the timestamp at which the project was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the project.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
