package model

import "time"

// User is the account record. Followers/Following/BlockedUsers are id
// arrays mutated only with atomic array operators.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	AvatarURL    string    `bson:"avatar_url" json:"avatarUrl,omitempty"`
	Bio          string    `bson:"bio" json:"bio,omitempty"`
	Followers    []string  `bson:"followers" json:"followers"`
	Following    []string  `bson:"following" json:"following"`
	BlockedUsers []string  `bson:"blocked_users" json:"blockedUsers"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

// Public strips fields other users must not see.
func (u *User) Public() *User {
	c := *u
	c.PasswordHash = ""
	c.BlockedUsers = nil
	return &c
}

type Comment struct {
	ID        string    `bson:"id" json:"id"`
	UserID    string    `bson:"user_id" json:"userId"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Post is a single document: likes and comments live inside it so every
// mutation is one atomic document update.
type Post struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"userId"`
	Content   string    `bson:"content" json:"content"`
	ImageURL  string    `bson:"image_url" json:"imageUrl,omitempty"`
	Likes     []string  `bson:"likes" json:"likes"`
	Comments  []Comment `bson:"comments" json:"comments"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Message is a direct message between two users.
type Message struct {
	ID         string    `bson:"_id" json:"id"`
	SenderID   string    `bson:"sender_id" json:"senderId"`
	ReceiverID string    `bson:"receiver_id" json:"receiverId"`
	Text       string    `bson:"text" json:"text"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// Conversation keys on the sorted participant pair so one document
// exists per pair; LastMessage is denormalized for the list view.
type Conversation struct {
	ID           string    `bson:"_id" json:"id"` // dm-{lo}-{hi}
	Participants []string  `bson:"participants" json:"participants"`
	LastMessage  string    `bson:"last_message" json:"lastMessage"`
	UpdatedAt    time.Time `bson:"updated_at" json:"timestamp"`
}

type Tribe struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description,omitempty"`
	CreatorID   string    `bson:"creator_id" json:"creatorId"`
	Members     []string  `bson:"members" json:"members"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}

type TribeMessage struct {
	ID        string    `bson:"_id" json:"id"`
	TribeID   string    `bson:"tribe_id" json:"tribeId"`
	SenderID  string    `bson:"sender_id" json:"senderId"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Notification kinds, fixed set.
const (
	NotifyLike    = "like"
	NotifyComment = "comment"
	NotifyFollow  = "follow"
)

// Notification is retained after being read, never deleted.
type Notification struct {
	ID        string    `bson:"_id" json:"id"`
	Recipient string    `bson:"recipient" json:"recipient"`
	Sender    string    `bson:"sender" json:"sender"`
	Kind      string    `bson:"kind" json:"kind"`
	SubjectID string    `bson:"subject_id" json:"subjectId"`
	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
