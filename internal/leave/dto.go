package leave

import (
	"errors"
	"regexp"
	"time"
)

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ApplyLeaveDTO is the request payload for filing a leave application.
type ApplyLeaveDTO struct {
	LeaveType    string  `json:"leave_type" validate:"required"`
	StartDate    string  `json:"start_date" validate:"required"`
	EndDate      string  `json:"end_date" validate:"required"`
	StartDayType string  `json:"start_day_type,omitempty"`
	EndDayType   string  `json:"end_day_type,omitempty"`
	StartTime    *string `json:"start_time,omitempty"`
	EndTime      *string `json:"end_time,omitempty"`
	Reason       string  `json:"reason" validate:"required"`
	Urgent       bool    `json:"urgent,omitempty"`
	DoctorNote   *string `json:"doctor_note,omitempty"`
}

// Validate checks field-level constraints. Cross-entity rules (conflicts,
// balance, notice) belong to the service.
func (dto ApplyLeaveDTO) Validate() error {
	if !Type(dto.LeaveType).Valid() {
		return errors.New("leave type must be one of casual, sick, lop, permission")
	}
	if dto.StartDate == "" || dto.EndDate == "" {
		return errors.New("start date and end date are required")
	}
	start, err := time.Parse("2006-01-02", dto.StartDate)
	if err != nil {
		return errors.New("start date must be in YYYY-MM-DD format")
	}
	end, err := time.Parse("2006-01-02", dto.EndDate)
	if err != nil {
		return errors.New("end date must be in YYYY-MM-DD format")
	}
	if end.Before(start) {
		return errors.New("end date cannot be before start date")
	}
	if dto.StartDayType != "" && !DayType(dto.StartDayType).Valid() {
		return errors.New("start day type must be one of full, first_half, second_half")
	}
	if dto.EndDayType != "" && !DayType(dto.EndDayType).Valid() {
		return errors.New("end day type must be one of full, first_half, second_half")
	}
	if dto.Reason == "" {
		return errors.New("reason is required")
	}
	if len(dto.Reason) > 500 {
		return errors.New("reason must be less than 500 characters")
	}
	if dto.DoctorNote != nil && Type(dto.LeaveType) != TypeSick {
		return errors.New("doctor note is only accepted for sick leave")
	}

	if Type(dto.LeaveType) == TypePermission {
		if dto.StartDate != dto.EndDate {
			return errors.New("permission must be a single day")
		}
		if dto.StartTime == nil || dto.EndTime == nil {
			return errors.New("permission requires start time and end time")
		}
		if !timeOfDayPattern.MatchString(*dto.StartTime) || !timeOfDayPattern.MatchString(*dto.EndTime) {
			return errors.New("times must be in HH:MM format")
		}
		if *dto.EndTime <= *dto.StartTime {
			return errors.New("end time must be after start time")
		}
	} else if dto.StartTime != nil || dto.EndTime != nil {
		return errors.New("times are only accepted for permission requests")
	}

	return nil
}

// Dates returns the parsed range. Call Validate first.
func (dto ApplyLeaveDTO) Dates() (start, end time.Time) {
	start, _ = time.Parse("2006-01-02", dto.StartDate)
	end, _ = time.Parse("2006-01-02", dto.EndDate)
	return NormalizeDate(start), NormalizeDate(end)
}

// DayTypes returns the edge day types, defaulting to full.
func (dto ApplyLeaveDTO) DayTypes() (startType, endType DayType) {
	startType, endType = DayFull, DayFull
	if dto.StartDayType != "" {
		startType = DayType(dto.StartDayType)
	}
	if dto.EndDayType != "" {
		endType = DayType(dto.EndDayType)
	}
	return startType, endType
}

// DecideLeaveDTO is the request payload for approving or rejecting.
// DayIDs empty means the decision covers every pending day; a subset makes a
// partial decision, and on approve the unselected pending days are rejected.
type DecideLeaveDTO struct {
	Outcome string  `json:"outcome" validate:"required,oneof=approve reject"`
	DayIDs  []int64 `json:"day_ids,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

func (dto DecideLeaveDTO) Validate() error {
	if dto.Outcome != "approve" && dto.Outcome != "reject" {
		return errors.New("outcome must be either 'approve' or 'reject'")
	}
	if dto.Comment != nil && len(*dto.Comment) > 500 {
		return errors.New("comment must be less than 500 characters")
	}
	return nil
}

// EditLeaveDTO is the request payload for editing a still-pending application.
// The edit replaces the request wholesale and re-runs every apply-time check.
type EditLeaveDTO struct {
	LeaveType    string  `json:"leave_type" validate:"required"`
	StartDate    string  `json:"start_date" validate:"required"`
	EndDate      string  `json:"end_date" validate:"required"`
	StartDayType string  `json:"start_day_type,omitempty"`
	EndDayType   string  `json:"end_day_type,omitempty"`
	StartTime    *string `json:"start_time,omitempty"`
	EndTime      *string `json:"end_time,omitempty"`
	Reason       string  `json:"reason" validate:"required"`
	Urgent       bool    `json:"urgent,omitempty"`
	DoctorNote   *string `json:"doctor_note,omitempty"`
}

func (dto EditLeaveDTO) Validate() error {
	return ApplyLeaveDTO(dto).Validate()
}

func (dto EditLeaveDTO) apply() ApplyLeaveDTO {
	return ApplyLeaveDTO(dto)
}
