// Package methods holds the static Web API method table: the endpoint path for
// each method name and whether it supports cursor pagination.
package methods

import "strings"

// Method describes one Web API method.
type Method struct {
	Name string
	Path string
	// Paginated is true when the method accepts cursor/limit and returns
	// response_metadata.next_cursor.
	Paginated bool
}

// Frequently used method names.
const (
	APITest                     = "api.test"
	AuthTest                    = "auth.test"
	ChatPostMessage             = "chat.postMessage"
	ChatPostEphemeral           = "chat.postEphemeral"
	ChatUpdate                  = "chat.update"
	ChatScheduleMessage         = "chat.scheduleMessage"
	ChatDelete                  = "chat.delete"
	ConversationsList           = "conversations.list"
	ConversationsHistory        = "conversations.history"
	ConversationsReplies        = "conversations.replies"
	ConversationsMembers        = "conversations.members"
	ConversationsInfo           = "conversations.info"
	FilesList                   = "files.list"
	FilesUpload                 = "files.upload"
	FilesGetUploadURLExternal   = "files.getUploadURLExternal"
	FilesCompleteUploadExternal = "files.completeUploadExternal"
	UsersList                   = "users.list"
	UsersInfo                   = "users.info"
	AdminAnalyticsGetFile       = "admin.analytics.getFile"
)

// paginated lists the methods known to support cursor pagination.
var paginated = []string{
	"admin.apps.approved.list",
	"admin.apps.requests.list",
	"admin.apps.restricted.list",
	"admin.conversations.search",
	"admin.emoji.list",
	"admin.inviteRequests.approved.list",
	"admin.inviteRequests.denied.list",
	"admin.inviteRequests.list",
	"admin.teams.admins.list",
	"admin.teams.list",
	"admin.teams.owners.list",
	"admin.users.list",
	"admin.users.session.list",
	"apps.event.authorizations.list",
	"auth.teams.list",
	"channels.list",
	"chat.scheduledMessages.list",
	ConversationsHistory,
	ConversationsList,
	ConversationsMembers,
	ConversationsReplies,
	"files.info",
	FilesList,
	"files.remote.list",
	"groups.list",
	"im.list",
	"mpim.list",
	"reactions.list",
	"stars.list",
	"team.accessLogs",
	"team.integrationLogs",
	"users.conversations",
	UsersList,
}

// deprecatedPrefixes are method families retired by the platform.
var deprecatedPrefixes = []string{
	"channels.",
	"groups.",
	"im.",
	"mpim.",
	"workflows.",
}

var table = func() map[string]Method {
	m := make(map[string]Method, len(paginated))
	for _, name := range paginated {
		m[name] = Method{Name: name, Path: name, Paginated: true}
	}
	return m
}()

// Lookup resolves a method name. Methods absent from the table map to a path
// equal to their name and are not paginated.
func Lookup(name string) Method {
	if m, ok := table[name]; ok {
		return m
	}
	return Method{Name: name, Path: name}
}

// Path returns the endpoint path for a method name.
func Path(name string) string {
	return Lookup(name).Path
}

// IsPaginated reports whether the method is known to support cursor pagination.
func IsPaginated(name string) bool {
	return Lookup(name).Paginated
}

// DeprecatedPrefix returns the longest deprecated prefix matching name.
func DeprecatedPrefix(name string) (string, bool) {
	best := ""
	for _, prefix := range deprecatedPrefixes {
		if strings.HasPrefix(name, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	return best, best != ""
}
