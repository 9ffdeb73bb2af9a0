package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// channelNameRegex matches channel names as they appear in holder tables and
// mask file names: a letter followed by letters, digits or dashes.
var channelNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// ValidateChannelName validates a color channel name.
//
// Channel names end up in output file names, so the rules are conservative:
//   - No empty names
//   - Maximum length of 64 characters
//   - Letters, digits and dashes only, starting with a letter
func ValidateChannelName(name string) error {
	if name == "" {
		return New(ErrCodeInput, "channel name cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInput, "channel name too long (max 64 characters)")
	}
	if !channelNameRegex.MatchString(name) {
		return New(ErrCodeInput, "invalid channel name: %q", name)
	}
	return nil
}

// ValidateFilename validates an uploaded or generated filename.
// It ensures the filename is a simple basename without path components.
func ValidateFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidPath, "filename cannot be empty")
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidPath, "filename cannot contain path separators")
	}

	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidPath, "filename cannot be a hidden file")
	}

	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "filename contains invalid characters")
		}
	}

	return nil
}
