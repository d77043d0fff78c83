package model

import "strings"

// User is the public shape of an account.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName returns the identity used in human-readable messages.
func (u User) DisplayName() string {
	return u.Username
}

// FullName returns "First Last", falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// MyUser is the private shape of the signed-in account, pushed on the user feed.
type MyUser struct {
	User
	PhoneNumber          string  `json:"phone_number"`
	NotifyMeAttendee     bool    `json:"notify_me_attendee"`
	NotifyMeHost         bool    `json:"notify_me_host"`
	NotifyMeAnnouncement bool    `json:"notify_me_announcement"`
	HostedQueues         []Queue `json:"hosted_queues"`
	MyQueue              *Queue  `json:"my_queue"`
}

// HasHost reports whether u is one of the queue's hosts.
func (q Queue) HasHost(u User) bool {
	for _, h := range q.Hosts {
		if h.ID == u.ID {
			return true
		}
	}
	return false
}
