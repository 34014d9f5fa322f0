package service

import (
	"net/url"
	"path"
	"strings"
)

// PlaceholderFilename is used when no name can be derived from a URL.
const PlaceholderFilename = "document"

// DefaultReportFilename is the name of a converted report without a usable
// source name.
const DefaultReportFilename = "amendments_report.xlsx"

// ReportSuffix replaces the source extension of a converted document.
const ReportSuffix = "_report.xlsx"

var sourceExtensions = []string{".docx", ".doc", ".pdf", ".odt", ".rtf"}

// DeriveFilename returns the percent-decoded last path segment of rawURL,
// or PlaceholderFilename when there is none. It never fails.
func DeriveFilename(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return PlaceholderFilename
	}
	p := u.EscapedPath()
	if p == "" || strings.HasSuffix(p, "/") {
		return PlaceholderFilename
	}
	seg := path.Base(p)
	if seg == "." || seg == ".." {
		return PlaceholderFilename
	}
	name, err := url.PathUnescape(seg)
	if err != nil {
		return PlaceholderFilename
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return PlaceholderFilename
	}
	return name
}

// ReportFilename strips a known document extension from name and appends
// suffix. An empty suffix means ReportSuffix.
func ReportFilename(name, suffix string) string {
	if suffix == "" {
		suffix = ReportSuffix
	}
	base := strings.TrimSpace(name)
	lower := strings.ToLower(base)
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	base = strings.TrimSpace(base)
	if base == "" || base == PlaceholderFilename {
		return DefaultReportFilename
	}
	return base + suffix
}
