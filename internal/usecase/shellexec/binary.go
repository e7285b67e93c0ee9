package shellexec

import "bytes"

// binarySniffLimit is how many leading bytes are inspected before a process's
// output is classified as text or binary. Classification is made once and is
// sticky for the life of the process.
const binarySniffLimit = 4096

// looksBinary reports whether the sample appears to be binary data rather
// than renderable text. A NUL byte is treated as conclusive; otherwise the
// sample is scanned for a high proportion of non-printable control bytes,
// which catches most compressed and image formats without misclassifying
// ANSI-colored terminal output.
func looksBinary(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	if len(sample) > binarySniffLimit {
		sample = sample[:binarySniffLimit]
	}
	if bytes.IndexByte(sample, 0x00) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range sample {
		if b < 0x08 || (b > 0x0d && b < 0x1b) {
			nonPrintable++
		}
	}
	return nonPrintable*100/len(sample) > 10
}
