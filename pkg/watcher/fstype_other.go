//go:build !linux

package watcher

// DetectFilesystemType reports FSTypeLocal for any non-empty path; remote
// detection is only implemented on Linux.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	return FSTypeLocal
}
