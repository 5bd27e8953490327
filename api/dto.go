/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator tags; handlers call Handler.decode, which
  rejects a body that fails them with a ValidationError naming the JSON
  field. Business rules (windows, balances, ownership) stay in the engines.

SEE ALSO:
  - handlers.go: decode and writeJSON
  - errors.go: ErrorResponse
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/notify"
	"github.com/warp/workforce-engine/shift"
	"github.com/warp/workforce-engine/timeoff"
)

// =============================================================================
// SHIFT REQUESTS
// =============================================================================

type CreateShiftRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	AssignedTo string `json:"assignedTo" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime    string `json:"endTime" validate:"required,datetime=15:04"`
	Timezone   string `json:"timezone" validate:"omitempty,timezone"`
	Role       string `json:"role" validate:"max=80"`
	Location   string `json:"location" validate:"max=120"`
	Notes      string `json:"notes"`
}

type CreateOpenShiftRequest struct {
	Name      string `json:"name" validate:"max=120"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
	Timezone  string `json:"timezone" validate:"omitempty,timezone"`
	Role      string `json:"role" validate:"max=80"`
	Location  string `json:"location" validate:"max=120"`
	Notes     string `json:"notes"`
}

// UpdateShiftRequest is a partial update. An empty assignedTo reopens the shift.
type UpdateShiftRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=120"`
	AssignedTo *string `json:"assignedTo"`
	Date       *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime  *string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime    *string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Timezone   *string `json:"timezone" validate:"omitempty,timezone"`
	Role       *string `json:"role"`
	Location   *string `json:"location"`
	Notes      *string `json:"notes"`
}

type ReviewShiftRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Reason   string `json:"reason" validate:"required_if=Decision reject"`
}

type CompleteShiftRequest struct {
	Notes string `json:"notes"`
}

type CancelShiftRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// SHIFT RESPONSES
// =============================================================================

type ShiftDTO struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	CreatedBy      string          `json:"createdBy"`
	Name           string          `json:"name"`
	AssignedTo     string          `json:"assignedTo,omitempty"`
	IsOpen         bool            `json:"isOpen"`
	Date           string          `json:"date"`
	StartTime      string          `json:"startTime"`
	EndTime        string          `json:"endTime"`
	Timezone       string          `json:"timezone,omitempty"`
	Role           string          `json:"role,omitempty"`
	Location       string          `json:"location,omitempty"`
	Status         string          `json:"status"`
	ApprovalStatus string          `json:"approvalStatus"`
	Review         *DecisionDTO    `json:"review,omitempty"`
	ClockInTime    *time.Time      `json:"clockInTime,omitempty"`
	ClockOutTime   *time.Time      `json:"clockOutTime,omitempty"`
	WorkedHours    decimal.Decimal `json:"workedHours"`
	Notes          string          `json:"notes,omitempty"`
	ReminderSent   bool            `json:"reminderSent"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type DecisionDTO struct {
	ReviewerID string    `json:"reviewerId"`
	At         time.Time `json:"at"`
	Comment    string    `json:"comment,omitempty"`
}

type ImportResultDTO struct {
	Created int        `json:"created"`
	Shifts  []ShiftDTO `json:"shifts"`
	Errors  []string   `json:"errors,omitempty"`
}

type SweepResultDTO struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
}

func toShiftDTO(s shift.Shift) ShiftDTO {
	return ShiftDTO{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		CreatedBy:      s.CreatedBy,
		Name:           s.Name,
		AssignedTo:     s.AssignedTo,
		IsOpen:         s.IsOpen,
		Date:           s.Date.String(),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		Timezone:       s.Timezone,
		Role:           s.Role,
		Location:       s.Location,
		Status:         string(s.Status),
		ApprovalStatus: string(s.ApprovalStatus),
		Review:         toDecisionDTO(s.Review),
		ClockInTime:    s.ClockInTime,
		ClockOutTime:   s.ClockOutTime,
		WorkedHours:    s.WorkedHours,
		Notes:          s.Notes,
		ReminderSent:   s.ReminderSent,
		Version:        s.Version,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toShiftDTOs(shifts []shift.Shift) []ShiftDTO {
	out := make([]ShiftDTO, 0, len(shifts))
	for _, s := range shifts {
		out = append(out, toShiftDTO(s))
	}
	return out
}

func toDecisionDTO(d generic.Decision) *DecisionDTO {
	if d.ReviewerID == "" {
		return nil
	}
	return &DecisionDTO{ReviewerID: d.ReviewerID, At: d.At, Comment: d.Comment}
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type SubmitLeaveRequest struct {
	Type        string   `json:"type" validate:"required,oneof=annual sick"`
	StartDate   string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	Reason      string   `json:"reason" validate:"max=1000"`
	Attachments []string `json:"attachments" validate:"dive,required"`
}

type AssignLeaveRequest struct {
	StaffID     string   `json:"staffId" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=annual sick"`
	StartDate   string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	Reason      string   `json:"reason" validate:"max=1000"`
	Attachments []string `json:"attachments" validate:"dive,required"`
}

type ReviewLeaveRequest struct {
	Action        string `json:"action" validate:"required,oneof=approved rejected modified"`
	Comments      string `json:"comments" validate:"max=1000"`
	ModifiedStart string `json:"modifiedStartDate" validate:"omitempty,datetime=2006-01-02"`
	ModifiedEnd   string `json:"modifiedEndDate" validate:"omitempty,datetime=2006-01-02"`
}

type SetEntitlementRequest struct {
	Days decimal.Decimal `json:"days"`
}

type CarryOverRequest struct {
	FromYear int             `json:"fromYear" validate:"required,min=2000,max=9999"`
	MaxDays  decimal.Decimal `json:"maxDays"`
}

type LeaveRequestDTO struct {
	ID                string       `json:"id"`
	StaffID           string       `json:"staffId"`
	OrganizationID    string       `json:"organizationId"`
	Type              string       `json:"type"`
	StartDate         string       `json:"startDate"`
	EndDate           string       `json:"endDate"`
	DaysRequested     int          `json:"daysRequested"`
	Reason            string       `json:"reason,omitempty"`
	Attachments       []string     `json:"attachments"`
	Status            string       `json:"status"`
	Review            *DecisionDTO `json:"review,omitempty"`
	ModifiedStartDate string       `json:"modifiedStartDate,omitempty"`
	ModifiedEndDate   string       `json:"modifiedEndDate,omitempty"`
	SubmittedAt       time.Time    `json:"submittedAt"`
	Version           int          `json:"version"`
}

func toLeaveRequestDTO(r timeoff.Request) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:             r.ID,
		StaffID:        r.StaffID,
		OrganizationID: r.OrganizationID,
		Type:           string(r.Type),
		StartDate:      r.StartDate.String(),
		EndDate:        r.EndDate.String(),
		DaysRequested:  r.DaysRequested,
		Reason:         r.Reason,
		Attachments:    r.Attachments,
		Status:         string(r.Status),
		Review:         toDecisionDTO(r.Review),
		SubmittedAt:    r.SubmittedAt,
		Version:        r.Version,
	}
	if dto.Attachments == nil {
		dto.Attachments = []string{}
	}
	if r.ModifiedDates != nil {
		dto.ModifiedStartDate = r.ModifiedDates.Start.String()
		dto.ModifiedEndDate = r.ModifiedDates.End.String()
	}
	return dto
}

func toLeaveRequestDTOs(reqs []timeoff.Request) []LeaveRequestDTO {
	out := make([]LeaveRequestDTO, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toLeaveRequestDTO(r))
	}
	return out
}

// =============================================================================
// BALANCES / REPORTS
// =============================================================================

type BalanceDTO struct {
	StaffID           string          `json:"staffId"`
	Year              int             `json:"year"`
	TotalAnnualLeave  decimal.Decimal `json:"totalAnnualLeave"`
	UsedAnnualLeave   decimal.Decimal `json:"usedAnnualLeave"`
	CarryOver         decimal.Decimal `json:"carryOver"`
	Remaining         decimal.Decimal `json:"remainingAnnualLeave"`
	PendingAnnualDays *int            `json:"pendingAnnualDays,omitempty"`
}

func toBalanceDTO(b timeoff.Balance) BalanceDTO {
	return BalanceDTO{
		StaffID:          b.StaffID,
		Year:             b.Year,
		TotalAnnualLeave: b.TotalAnnualLeave.Value,
		UsedAnnualLeave:  b.UsedAnnualLeave.Value,
		CarryOver:        b.CarryOver.Value,
		Remaining:        b.Remaining().Value,
	}
}

type StaffBalanceDTO struct {
	StaffID         string     `json:"staffId"`
	StaffName       string     `json:"staffName"`
	Balance         BalanceDTO `json:"balance"`
	PendingRequests int        `json:"pendingRequests"`
}

type TransactionDTO struct {
	ID          string          `json:"id"`
	Year        int             `json:"year"`
	Delta       decimal.Decimal `json:"delta"`
	Type        string          `json:"type"`
	ReferenceID string          `json:"referenceId,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionDTO{
			ID:          string(tx.ID),
			Year:        tx.Year,
			Delta:       tx.Delta.Value,
			Type:        string(tx.Type),
			ReferenceID: tx.ReferenceID,
			Reason:      tx.Reason,
			CreatedBy:   tx.CreatedBy,
			CreatedAt:   tx.CreatedAt,
		})
	}
	return out
}

type ReportRowDTO struct {
	StaffID   string `json:"staffId"`
	StaffName string `json:"staffName"`
	Annual    int    `json:"annualDays"`
	Sick      int    `json:"sickDays"`
	Total     int    `json:"totalDays"`
}

type ReportDTO struct {
	Year int            `json:"year"`
	Rows []ReportRowDTO `json:"rows"`
}

type StatsDTO struct {
	TotalRequests      int  `json:"totalRequests"`
	PendingRequests    int  `json:"pendingRequests"`
	ApprovedRequests   int  `json:"approvedRequests"`
	RejectedRequests   int  `json:"rejectedRequests"`
	TotalDaysRequested int  `json:"totalDaysRequested"`
	ApprovedDays       int  `json:"approvedDays"`
	StaffCount         *int `json:"staffCount,omitempty"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RelatedID string    `json:"relatedId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotificationDTOs(ns []notify.Notification) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(ns))
	for _, n := range ns {
		out = append(out, NotificationDTO{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			RelatedID: n.RelatedID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
