package models

import "time"

// User represents an account within the ClipStream platform. A user doubles as
// a channel when other users subscribe to it.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Password     string    `json:"-"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage,omitempty"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Video stores an uploaded video along with its cached playback metadata.
type Video struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Subscription is the edge between a subscribing user and the channel they follow.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ChannelProfile is the projection returned for channel lookups, with derived
// relationship counts relative to the requesting viewer.
type ChannelProfile struct {
	FullName             string `json:"fullName"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	SubscriberCount      int    `json:"subscriberCount"`
	ChannelsSubscribedTo int    `json:"channelSubscribedToCount"`
	IsSubscribed         bool   `json:"isSubscribed"`
}

// VideoOwner is the collapsed owner sub-record embedded in history results.
type VideoOwner struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// HistoryVideo enriches a watched video with its owner's public details.
type HistoryVideo struct {
	Video
	Owner VideoOwner `json:"owner"`
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
