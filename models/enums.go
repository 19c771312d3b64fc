package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskStatusTodo        TaskStatus = "TODO"
	TaskStatusInProgress  TaskStatus = "IN_PROGRESS"
	TaskStatusUnderReview TaskStatus = "UNDER_REVIEW"
	TaskStatusDone        TaskStatus = "DONE"
)

// ActiveTaskStatuses are the statuses the daily snapshot treats as
// "currently being worked".
var ActiveTaskStatuses = []TaskStatus{TaskStatusInProgress, TaskStatusUnderReview}

func ParseTaskStatus(s string) (TaskStatus, error) {
	taskStatus := map[string]TaskStatus{
		"TODO":         TaskStatusTodo,
		"IN_PROGRESS":  TaskStatusInProgress,
		"UNDER_REVIEW": TaskStatusUnderReview,
		"DONE":         TaskStatusDone,
	}
	v, ok := taskStatus[s]
	if !ok {
		return "", errors.New("invalid task status")
	}
	return v, nil
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

func ParseTaskPriority(s string) (TaskPriority, error) {
	taskPriority := map[string]TaskPriority{
		"LOW":    TaskPriorityLow,
		"MEDIUM": TaskPriorityMedium,
		"HIGH":   TaskPriorityHigh,
	}
	v, ok := taskPriority[s]
	if !ok {
		return "", errors.New("invalid task priority")
	}
	return v, nil
}

// OrDefault maps a blank priority to the MEDIUM default so the snapshot
// engine and the monthly aggregator share one defaulting rule.
func (p TaskPriority) OrDefault() TaskPriority {
	if p == "" {
		return TaskPriorityMedium
	}
	return p
}

type UserRole string

const (
	UserRoleEngineer   UserRole = "ENG"
	UserRoleSupervisor UserRole = "SUPV"
)

func ParseUserRole(s string) (UserRole, error) {
	userRole := map[string]UserRole{
		"ENG":  UserRoleEngineer,
		"SUPV": UserRoleSupervisor,
	}
	v, ok := userRole[s]
	if !ok {
		return "", errors.New("invalid user role")
	}
	return v, nil
}

type DutyStatus string

const (
	DutyStatusOnDuty  DutyStatus = "ON_DUTY"
	DutyStatusOffDuty DutyStatus = "OFF_DUTY"
)

func ParseDutyStatus(s string) (DutyStatus, error) {
	dutyStatus := map[string]DutyStatus{
		"ON_DUTY":  DutyStatusOnDuty,
		"OFF_DUTY": DutyStatusOffDuty,
	}
	v, ok := dutyStatus[s]
	if !ok {
		return "", errors.New("invalid duty status")
	}
	return v, nil
}

type Site string

const (
	SitePqpHt Site = "PQP_HT"
	SiteMt1   Site = "MT1"
)

// AllSites is the fixed site list the headcount sampler iterates.
var AllSites = []Site{SitePqpHt, SiteMt1}

func ParseSite(s string) (Site, error) {
	site := map[string]Site{
		"PQP_HT": SitePqpHt,
		"MT1":    SiteMt1,
	}
	v, ok := site[s]
	if !ok {
		return "", errors.New("invalid site")
	}
	return v, nil
}

// IntList stores a []int as a JSON column.
type IntList []int

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		l = IntList{}
	}
	return json.Marshal(l)
}

func (l *IntList) Scan(value interface{}) error {
	if value == nil {
		*l = IntList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot convert %T to IntList", value)
	}
}

// MyDateString is a day-granularity date stored as a DATE column.
type MyDateString time.Time

func (t MyDateString) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan implements the sql.Scanner interface
func (t *MyDateString) Scan(value interface{}) error {
	if value == nil {
		*t = MyDateString(time.Time{})
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*t = MyDateString(v)
	default:
		return fmt.Errorf("cannot convert %T to MyDateString", value)
	}
	return nil
}

func (t MyDateString) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format("2006-01-02"))
}

func (t *MyDateString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = MyDateString(time.Time{})
		return nil
	}
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	*t = MyDateString(parsed)
	return nil
}
