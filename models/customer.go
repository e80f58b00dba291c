package models

import (
	"time"
)

// CustomerRecord is a business-scoped loyalty profile. LinkedUserID and
// DelinkedUserID, set when a phone change removed a user's link, are the only
// fields written by the reconciliation code.
type CustomerRecord struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"businessId"`
	Name           string    `json:"name,omitempty"`
	Phone          string    `json:"phone"`
	LinkedUserID   string    `json:"linkedUserId,omitempty"`
	DelinkedUserID string    `json:"delinkedUserId,omitempty"`
	VisitCount     int       `json:"visitCount,omitempty"`
	Points         int64     `json:"points,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (c *CustomerRecord) IsLinked() bool {
	return c != nil && c.LinkedUserID != ""
}

// LinkedToOther reports whether the record belongs to a user other than userID.
func (c *CustomerRecord) LinkedToOther(userID string) bool {
	return c.IsLinked() && c.LinkedUserID != userID
}
