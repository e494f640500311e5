package research

import (
	"fmt"
	"log"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/prosearch/models"
)

var (
	// Matches [3] as well as combined markers like [1, 2, 5].
	citationMarkerRe = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)
	markdownLinkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// resolveCitations rewrites bracket citation markers in generated text into
// markdown links against the 1-based source sequence, returning the resolved
// text and the deduplicated list of sources that actually got cited. Markers
// are replaced back-to-front so earlier offsets stay valid. Models sometimes
// skip markers and invent their own links instead, so two repair passes run
// when nothing resolved: dead placeholder links get pointed at the first real
// source, and failing that a references section is appended.
func resolveCitations(text string, sources []models.Source, logger *log.Logger) (string, []models.Source) {
	used := []models.Source{}

	matches := citationMarkerRe.FindAllStringSubmatchIndex(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		var links []string
		for _, raw := range strings.Split(text[m[2]:m[3]], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			if n < 1 || n > len(sources) {
				if logger != nil {
					logger.Printf("citation %d out of range, have %d sources", n, len(sources))
				}
				continue
			}
			src := sources[n-1]
			if src.URL == "" {
				continue
			}
			links = append(links, fmt.Sprintf("[%s](%s)", citationLabel(src, n), src.URL))
			if !slices.Contains(used, src) {
				used = append(used, src)
			}
		}
		if len(links) > 0 {
			text = text[:m[0]] + strings.Join(links, " ") + text[m[1]:]
		}
	}

	if len(used) == 0 && text != "" {
		text, used = repairPlaceholderLinks(text, sources, used)
	}

	if len(used) == 0 && len(sources) > 0 {
		text, used = appendReferences(text, sources, used)
	}

	return text, used
}

// repairPlaceholderLinks rewrites markdown links whose URL is a loopback or
// inert placeholder to point at the first real source, keeping the link text.
// Every invalid link gets the same substitute. Links that already point at a
// known source URL count as resolved citations, which keeps the whole pass a
// no-op on text that has been through resolution before.
func repairPlaceholderLinks(text string, sources, used []models.Source) (string, []models.Source) {
	for _, lm := range markdownLinkRe.FindAllStringSubmatch(text, -1) {
		linkText, linkURL := lm[1], lm[2]
		if !strings.Contains(linkURL, "localhost") && linkURL != "#" {
			if i := slices.IndexFunc(sources, func(s models.Source) bool { return s.URL == linkURL }); i >= 0 {
				if !slices.Contains(used, sources[i]) {
					used = append(used, sources[i])
				}
			}
			continue
		}
		if len(sources) == 0 || sources[0].URL == "" {
			continue
		}
		text = strings.ReplaceAll(text,
			fmt.Sprintf("[%s](%s)", linkText, linkURL),
			fmt.Sprintf("[%s](%s)", linkText, sources[0].URL))
		if !slices.Contains(used, sources[0]) {
			used = append(used, sources[0])
		}
	}
	return text, used
}

// appendReferences tacks a numbered source list onto an answer that ended up
// with no citations at all, so the reader still gets the material.
func appendReferences(text string, sources, used []models.Source) (string, []models.Source) {
	var b strings.Builder
	b.WriteString("\n\n## References\n\n")
	for i, src := range sources {
		if i == 5 {
			break
		}
		if src.URL == "" {
			continue
		}
		fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, citationLabel(src, i+1), src.URL)
		used = append(used, src)
	}
	return text + b.String(), used
}

// citationLabel picks the display text for a source link: the title with
// common domain suffixes stripped, or a positional fallback when the title is
// missing.
func citationLabel(src models.Source, n int) string {
	if strings.TrimSpace(src.Title) == "" {
		return fmt.Sprintf("source %d", n)
	}
	clean := src.Title
	for _, suffix := range []string{".com", ".cn", ".net", ".org"} {
		clean = strings.ReplaceAll(clean, suffix, "")
	}
	if clean == "" {
		return src.Title
	}
	return clean
}
