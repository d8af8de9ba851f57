package model

import (
	"time"

	"github.com/google/uuid"
)

// ReviewWindowDays сколько дней после даты работы принимаются отзывы
const ReviewWindowDays = 10

type Review struct {
	ID           uuid.UUID      `json:"id"`
	JobID        uuid.UUID      `json:"job_id"`
	ReviewerID   uuid.UUID      `json:"reviewer_id"`
	RevieweeID   uuid.UUID      `json:"reviewee_id"`
	ReviewerRole Role           `json:"reviewer_role"`
	Rating       int            `json:"rating"`
	Comment      string         `json:"comment"`
	SubRatings   map[string]int `json:"sub_ratings,omitempty"` // оценки по критериям, зависят от роли
	IsPublished  bool           `json:"is_published"`
	PublishedAt  *time.Time     `json:"published_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone копия отзыва без общих map и указателей
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	c := *r
	if r.SubRatings != nil {
		c.SubRatings = make(map[string]int, len(r.SubRatings))
		for k, v := range r.SubRatings {
			c.SubRatings[k] = v
		}
	}
	c.PublishedAt = cloneTime(r.PublishedAt)
	return &c
}
