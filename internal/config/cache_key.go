package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// AttemptStartKey returns the cache key for a student's attempt start time
func (r *CacheKeyStruct) AttemptStartKey(assignmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assignment:%s:attempt_start", studentID, assignmentID)
}

// StudentAnswersKey returns the cache key for a student's autosaved answers
func (r *CacheKeyStruct) StudentAnswersKey(assignmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assignment:%s:answers", studentID, assignmentID)
}

// StudentStepOrderKey returns the cache key for a student's flattened step order
func (r *CacheKeyStruct) StudentStepOrderKey(assignmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assignment:%s:step_order", studentID, assignmentID)
}

// AssignmentPayloadKey returns the cache key for an assignment's student payload
func (r *CacheKeyStruct) AssignmentPayloadKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:payload", assignmentID)
}

// AssignmentDurationKey returns the cache key for an assignment's duration
func (r *CacheKeyStruct) AssignmentDurationKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:duration", assignmentID)
}

var CacheKey = NewCacheKeyStruct()
