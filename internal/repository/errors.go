package repository

import (
	"errors"
	"time"

	"github.com/vladislav-moscow/Social/internal/metrics"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotAMember           = errors.New("sender is not a member of the conversation")
	ErrPostNotFound         = errors.New("post not found")
	ErrSelfFollow           = errors.New("users cannot follow themselves")
)

func observe(queryType, table string, start time.Time) {
	metrics.Get().DatabaseQueryDuration.WithLabelValues(queryType, table).Observe(time.Since(start).Seconds())
}
