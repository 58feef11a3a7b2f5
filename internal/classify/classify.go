// Package classify decides whether a paste or drop event enters the
// upload flow or is deferred to the editor's native behavior. Functions
// here are pure and never mutate the event, so a deferred event reaches
// the native handler exactly as it arrived.
package classify

import (
	"pasteup/internal/event"
)

// Verdict is the classifier's decision for one event.
type Verdict int

const (
	// VerdictIneligible means the event shape does not match the upload
	// flow. The event is silently deferred to the native handler.
	VerdictIneligible Verdict = iota

	// VerdictNoUploader means the event would be handled but no uploader
	// is configured. The caller shows a transient notice and defers.
	VerdictNoUploader

	// VerdictEligible means the upload flow takes the event.
	VerdictEligible
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictIneligible:
		return "ineligible"
	case VerdictNoUploader:
		return "no-uploader"
	case VerdictEligible:
		return "eligible"
	default:
		return "unknown"
	}
}

// Drop classifies a drop event. Eligibility requires exactly one
// transfer type tag and it is TransferTypeFiles, at least one attached
// file, and an image MIME type on every file.
func Drop(ev event.Event, uploaderReady bool) Verdict {
	if len(ev.Transfer.Types) != 1 || ev.Transfer.Types[0] != event.TransferTypeFiles {
		return VerdictIneligible
	}
	if len(ev.Transfer.Files) == 0 {
		return VerdictIneligible
	}
	for _, f := range ev.Transfer.Files {
		if !f.IsImage() {
			return VerdictIneligible
		}
	}
	if !uploaderReady {
		return VerdictNoUploader
	}
	return VerdictEligible
}

// Paste classifies a paste event. Eligibility requires at least one
// attached file and an image MIME type on the first one; files after
// the first do not affect the verdict.
func Paste(ev event.Event, uploaderReady bool) Verdict {
	if len(ev.Transfer.Files) == 0 {
		return VerdictIneligible
	}
	if !ev.Transfer.Files[0].IsImage() {
		return VerdictIneligible
	}
	if !uploaderReady {
		return VerdictNoUploader
	}
	return VerdictEligible
}
