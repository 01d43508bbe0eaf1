// Package delivery hands generated calendar documents to the user, either as
// an HTTP download or as a file on disk.
package delivery

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	appLog "cdfplan/internal/log"
	"cdfplan/internal/model"
)

// ContentType is the media type of delivered documents.
const ContentType = "text/calendar; charset=utf-8"

const extension = ".ics"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// Characters rejected by common file systems and save dialogs.
	unsafeChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// Filename picks the download name for events. A single titled event is
// named after its title with whitespace replaced by underscores; anything
// else gets generic.
func Filename(events []model.EventRecord, generic string) string {
	if len(events) != 1 {
		return generic
	}
	name := SanitizeTitle(events[0].Title)
	if name == "" {
		return generic
	}
	return name + extension
}

// SanitizeTitle turns a title into a file name stem.
func SanitizeTitle(title string) string {
	name := strings.TrimSpace(unsafeChars.ReplaceAllString(title, ""))
	return whitespaceRun.ReplaceAllString(name, "_")
}

// Deliver writes content as a calendar attachment named filename.
func Deliver(w http.ResponseWriter, content, filename string) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Disposition", Disposition("attachment", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(content)); err != nil {
		// The client went away; nothing to report back to the App.
		appLog.Error("calendar delivery failed", err, "filename", filename)
	}
}

// Disposition formats a Content-Disposition header value. A non-ASCII
// filename is sent twice: an ASCII filename= for old clients, then the
// exact name as RFC 2231 filename*=.
func Disposition(kind, filename string) string {
	if filename == "" {
		return kind
	}
	exact := mime.FormatMediaType(kind, map[string]string{"filename": filename})
	if isASCII(filename) {
		return exact
	}
	fallback := mime.FormatMediaType(kind, map[string]string{"filename": ASCIIName(filename)})
	return fallback + strings.TrimPrefix(exact, kind)
}

// ASCIIName folds accents ("é" to "e") and replaces what is left outside
// printable ASCII with '_'.
func ASCIIName(name string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, folded)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// WriteFile stores content as dir/filename, atomically via temp file +
// rename, and returns the final path.
func WriteFile(dir, filename, content string) (string, error) {
	if filename == "" {
		return "", errors.New("delivery: filename is empty")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, filepath.Base(filename))

	tmp, err := os.CreateTemp(dir, ".cdfplan-export-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", err
	}

	appLog.Info("calendar written", "path", path, "bytes", len(content))
	return path, nil
}
