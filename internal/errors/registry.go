package errors

// registry maps stable error codes to their category and message.
// Codes never change meaning once released; add new ones instead.
var registry = map[string]struct {
	category Category
	message  string
}{
	"E101": {CategoryConfig, "configuration file not found"},
	"E102": {CategoryConfig, "configuration file is not valid JSON"},
	"E103": {CategoryConfig, "invalid configuration value"},
	"E110": {CategoryStorage, "storage backend initialization failed"},
	"E120": {CategoryCLI, "command failed"},
}

// New creates an AtomikError for a registered code. Unknown codes still
// produce an error, flagged as such, so a typo never panics at a failure
// site.
func New(code string) *AtomikError {
	if entry, ok := registry[code]; ok {
		return &AtomikError{
			Code:     code,
			Category: entry.category,
			Message:  entry.message,
		}
	}
	return &AtomikError{
		Code:     code,
		Category: CategoryCLI,
		Message:  "unknown error code",
	}
}
