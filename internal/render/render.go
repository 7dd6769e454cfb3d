// Package render turns change records into an HTML-fragment report.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"shopwatch/internal/model"
)

// NoUpdates is rendered when no record is worth reporting.
const NoUpdates = "No updates.<br>"

// TelegramLimit is the maximum message length accepted by Telegram.
const TelegramLimit = 4096

const lineBreak = "<br>"

var jst = time.FixedZone("JST", 9*60*60)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

var groups = []struct {
	kind  model.ChangeKind
	label string
}{
	{model.ChangeNew, "NEW"},
	{model.ChangePriceDropped, "DISCOUNT"},
	{model.ChangeStatusChanged, "STATUS"},
}

// Render formats records grouped by kind. Unchanged records are skipped.
// Within a group records keep their input order.
func Render(records []model.ChangeRecord) string {
	byKind := make(map[model.ChangeKind][]model.ChangeRecord)
	total := 0
	for _, r := range records {
		if r.Kind == model.ChangeUnchanged {
			continue
		}
		byKind[r.Kind] = append(byKind[r.Kind], r)
		total++
	}
	if total == 0 {
		return NoUpdates
	}

	var b strings.Builder
	for _, g := range groups {
		rs := byKind[g.kind]
		if len(rs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "<br><b>[%s] ---------- %d</b><br>", g.label, len(rs))
		for _, r := range rs {
			writeItem(&b, r)
		}
	}
	return b.String()
}

func writeItem(b *strings.Builder, r model.ChangeRecord) {
	it := r.Item
	fmt.Fprintf(b, `<a href="%s">[%s] %s  %s</a><br>`,
		html.EscapeString(it.URL), it.Source, html.EscapeString(it.ID), html.EscapeString(it.Title))

	if it.BuyNowPrice > 0 {
		fmt.Fprintf(b, "JPY %d[%d]", it.Price, it.BuyNowPrice)
	} else {
		fmt.Fprintf(b, "JPY %d", it.Price)
	}
	if it.Bids >= 0 {
		fmt.Fprintf(b, "    %d bid", it.Bids)
	}
	fmt.Fprintf(b, "    %s", it.Status)
	if r.Key.Keyword != "" {
		fmt.Fprintf(b, "    (%s)", html.EscapeString(r.Key.Keyword))
	}
	b.WriteString(lineBreak)

	if !it.EndsAt.IsZero() {
		fmt.Fprintf(b, "End %s<br>", FormatTime(it.EndsAt))
	}
}

// Header renders the report title and one summary line per source run.
func Header(now time.Time, logs []model.RunLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>shopwatch</b><br>Time: %s<br>", FormatTime(now))
	for _, l := range logs {
		fmt.Fprintf(&b, "%s: entries %d    errors %d<br>", l.Source, l.Items, l.Errors)
	}
	return b.String()
}

// FormatTime formats t in Japan time, the zone every source lists in.
func FormatTime(t time.Time) string {
	return t.In(jst).Format("2006-01-02 15:04 MST")
}

// Split breaks text into chunks of at most limit runes, cutting after <br>
// tags where possible. A single line longer than limit loses its markup
// and is cut between entities.
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range splitLines(text) {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		if n > limit {
			line = stripTags(line)
			n = utf8.RuneCountInString(line)
		}
		for n > limit {
			head, tail := cutText(line, limit)
			chunks = append(chunks, head)
			line = tail
			n = utf8.RuneCountInString(line)
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}

func splitLines(text string) []string {
	parts := strings.SplitAfter(text, lineBreak)
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// stripTags drops every tag of line except a trailing <br>.
func stripTags(line string) string {
	body, hasBreak := strings.CutSuffix(line, lineBreak)
	body = tagPattern.ReplaceAllString(body, "")
	if hasBreak {
		body += lineBreak
	}
	return body
}

// cutText cuts s after at most n runes, moving the cut back so it never
// lands inside a tag or an entity.
func cutText(s string, n int) (string, string) {
	head, _ := cutRunes(s, n)
	cut := len(head)
	if i := strings.LastIndexByte(head, '<'); i > 0 && i > strings.LastIndexByte(head, '>') {
		cut = i
	}
	if i := strings.LastIndexByte(head[:cut], '&'); i > 0 && i > strings.LastIndexByte(head[:cut], ';') {
		cut = i
	}
	return s[:cut], s[cut:]
}

func cutRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
