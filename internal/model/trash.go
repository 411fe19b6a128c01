package model

import "time"

// TrashEntry is one item in the freedesktop trash. ID is the name of the item
// under Trash/files.
type TrashEntry struct {
	ID              string    `json:"id"`
	OriginalPath    string    `json:"original_path,omitempty"`
	TrashedPath     string    `json:"trashed_path"`
	InfoPath        string    `json:"info_path,omitempty"`
	TrashedAt       time.Time `json:"trashed_at"`
	MetadataWritten bool      `json:"metadata_written"`
	MetadataError   string    `json:"metadata_error,omitempty"`
	IsDir           bool      `json:"is_dir"`
}

type TrashFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type EmptyTrashResult struct {
	Removed  int            `json:"removed"`
	Failures []TrashFailure `json:"failures"`
}
