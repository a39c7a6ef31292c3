package service

import "mobilepush/internal/model"

// NotificationPreferences decides whether a user wants to be notified
// about messages they missed while offline or did not see while online.
type NotificationPreferences interface {
	WantsOfflineNotifications(user *model.UserProfile) bool
	WantsOnlineNotifications(user *model.UserProfile) bool
}

// ProfilePreferences reads the decision from the user's own settings.
// Bots are never notified.
type ProfilePreferences struct{}

func (ProfilePreferences) WantsOfflineNotifications(user *model.UserProfile) bool {
	if user.IsBot {
		return false
	}
	return user.EnableOfflineEmailNotifications || user.EnableOfflinePushNotifications
}

func (ProfilePreferences) WantsOnlineNotifications(user *model.UserProfile) bool {
	return user.EnableOnlinePushNotifications && !user.IsBot
}
