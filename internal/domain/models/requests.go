package models

// VoteRequest is the body of POST /api/vote.
type VoteRequest struct {
	Name string `json:"name" binding:"required"`
	Meal string `json:"meal" binding:"required"`
}

// AddNameRequest is the body of POST /api/names.
type AddNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameNameRequest is the body of PUT /api/names/:oldName.
type RenameNameRequest struct {
	NewName string `json:"newName" binding:"required"`
}

// PublishResponse reports how many attendance rows were pushed to the sheet.
type PublishResponse struct {
	PublishedRows int `json:"published_rows"`
}
