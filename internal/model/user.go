package model

// UserProfile is the slice of a user account the push path needs.
// Accounts themselves are managed elsewhere; this is read-only here.
type UserProfile struct {
	ID        int64  `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FullName  string `db:"full_name" json:"full_name"`
	AvatarURL string `db:"avatar_url" json:"avatar_url"`
	IsBot     bool   `db:"is_bot" json:"is_bot"`

	EnableOfflineEmailNotifications bool `db:"enable_offline_email_notifications" json:"-"`
	EnableOfflinePushNotifications  bool `db:"enable_offline_push_notifications" json:"-"`
	EnableOnlinePushNotifications   bool `db:"enable_online_push_notifications" json:"-"`
}
