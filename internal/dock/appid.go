package dock

import "strings"

const (
	applicationsDir = "/applications/"
	desktopSuffix   = ".desktop"
)

// AppID derives the application id from a desktop file path: the text between
// the last "/applications/" and the last ".desktop" after it.
//
//	/usr/share/applications/foo.desktop -> foo
//
// Paths without the directory marker, without the suffix after it, or with
// nothing in between yield ("", false).
func AppID(desktopFile string) (string, bool) {
	left := strings.LastIndex(desktopFile, applicationsDir)
	if left < 0 {
		return "", false
	}
	start := left + len(applicationsDir)
	end := strings.LastIndex(desktopFile, desktopSuffix)
	if end < start {
		return "", false
	}
	id := desktopFile[start:end]
	if id == "" {
		return "", false
	}
	return id, true
}
