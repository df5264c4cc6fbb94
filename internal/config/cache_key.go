package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key holding the JTI of a student's active login.
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// SessionDraftsKey returns the hash key holding autosaved answers of an exam session.
func (r *CacheKeyStruct) SessionDraftsKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:drafts", sessionID)
}

var CacheKey = NewCacheKeyStruct()
