// Package model defines domain entities shared by the store, vault and snapshot layers.
package model

import (
	"math"
	"time"
)

// Roles known to the claims workflow. The store does not enforce them;
// the calling layer is responsible for verifying the actor's role.
const (
	RoleLecturer    = "Lecturer"
	RoleCoordinator = "Coordinator"
	RoleManager     = "Manager"
)

// Claim statuses. Status is an open tag: RecordDecision writes whatever
// decision string the caller supplies.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// User is an account known to the system. Usernames are unique,
// case-sensitive keys.
type User struct {
	ID       int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Lecturer is the claim-submitting profile owned 1:1 by a User.
type Lecturer struct {
	ID     int64  `json:"lecturerId"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Claim is a lecturer's request for payment for worked hours.
// Hours and rate are stored rounded to two decimals; TotalAmount is the
// rounded product.
type Claim struct {
	ID          int64     `json:"claimId"`
	LecturerID  int64     `json:"lecturerId"`
	HoursWorked float64   `json:"hoursWorked"`
	HourlyRate  float64   `json:"hourlyRate"`
	TotalAmount float64   `json:"totalAmount"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
	Notes       string    `json:"notes"`
}

// Approval is an immutable record of a decision made on a Claim.
// A claim's approval history is append-only; the latest approval is the
// one with the maximum DecisionAt.
type Approval struct {
	ID         int64     `json:"approvalId"`
	ClaimID    int64     `json:"claimId"`
	ApprovedBy string    `json:"approvedBy"`
	Decision   string    `json:"decision"`
	DecisionAt time.Time `json:"decisionAt"`
	Comments   string    `json:"comments"`
}

// SupportingDocument is metadata for one uploaded file whose bytes live
// encrypted on disk. SizeBytes is the ciphertext length; the IV is
// non-secret but required for decryption.
type SupportingDocument struct {
	ID          int64     `json:"documentId"`
	ClaimID     int64     `json:"claimId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
	UploadedBy  int64     `json:"uploadedByLecturerId"`
	Path        string    `json:"filePath"`
	IVBase64    string    `json:"encryptionIvBase64"`
	SizeBytes   int64     `json:"sizeBytes"`
}

// Round2 rounds a monetary value to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
