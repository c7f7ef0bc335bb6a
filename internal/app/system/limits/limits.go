// internal/app/system/limits/limits.go
package limits

// Group sizing and upload limits.
const (
	// MinGroupMembers is the smallest allowed member ceiling; a study
	// group of one is just notes.
	MinGroupMembers = 2

	// MaxGroupMembers caps max_members. It also bounds the size of the
	// group-deletion transaction (one group doc + N member records +
	// N joined_groups pulls), which must stay well inside the store's
	// transaction limits.
	MaxGroupMembers = 100

	// DefaultGroupMembers is used when a create request leaves the
	// ceiling unset.
	DefaultGroupMembers = 50

	// MaxUploadSize is the largest accepted media upload (images, PDFs).
	MaxUploadSize = 10 << 20 // 10 MB

	// MaxMessageLength bounds chat message text after sanitization.
	MaxMessageLength = 4000
)
