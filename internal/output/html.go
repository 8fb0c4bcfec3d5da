package output

import (
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	colorAccent = "#0B3D91"
	colorMuted  = "#9E9E9E"
	colorExact  = "#00695C"

	htmlMatchLimit = 500
)

// WriteMatchesHTML writes a small HTML page summarizing a correlation report.
// Matches keep the report's order; at most htmlMatchLimit rows are listed.
func WriteMatchesHTML(w io.Writer, r Report) {
	title := r.Correlator
	if r.Source != "" || r.Destination != "" {
		title = fmt.Sprintf("%s: %s -> %s", r.Correlator, r.Source, r.Destination)
	}

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; font-size: 14px; color: #1A1A1A; background: #F5F5F5; margin: 2em; max-width: 1100px; }
h1 { font-size: 18px; font-weight: 600; margin-bottom: 0.5em; }
h2 { font-size: 14px; font-weight: 600; margin-top: 1.5em; border-bottom: 1px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; margin: 0.5em 0; }
th, td { text-align: left; padding: 3px 12px 3px 0; font-size: 13px; }
th { font-weight: 600; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.fn { font-family: "Courier New", monospace; font-size: 12px; }
.bar { height: 8px; border-radius: 2px; display: inline-block; vertical-align: middle; }
</style>
</head>
<body>
`, htmlEscape(title))

	fmt.Fprintf(w, "<h1>%s</h1>\n", htmlEscape(title))

	exact := 0
	sum := 0.0
	srcSeen := make(map[FunctionRef]bool)
	dstSeen := make(map[FunctionRef]bool)
	for _, m := range r.Matches {
		if m.Source.Name == m.Destination.Name {
			exact++
		}
		sum += m.Similarity
		srcSeen[m.Source] = true
		dstSeen[m.Destination] = true
	}
	mean := 0.0
	if len(r.Matches) > 0 {
		mean = sum / float64(len(r.Matches))
	}

	fmt.Fprintln(w, "<h2>Summary</h2>")
	fmt.Fprintln(w, "<table>")
	if r.Source != "" {
		fmt.Fprintf(w, "<tr><td>Source</td><td class=\"fn\">%s</td></tr>\n", htmlEscape(r.Source))
	}
	if r.Destination != "" {
		fmt.Fprintf(w, "<tr><td>Destination</td><td class=\"fn\">%s</td></tr>\n", htmlEscape(r.Destination))
	}
	fmt.Fprintf(w, "<tr><td>Similarity threshold</td><td class=\"num\">%.3f</td></tr>\n", r.Options.SimilarityThreshold)
	fmt.Fprintf(w, "<tr><td>Confidence threshold</td><td class=\"num\">%.3f</td></tr>\n", r.Options.ConfidenceThreshold)
	fmt.Fprintf(w, "<tr><td>Names must match</td><td class=\"num\">%t</td></tr>\n", r.Options.SymbolNamesMustMatch)
	fmt.Fprintf(w, "<tr><td>Matches</td><td class=\"num\">%d</td></tr>\n", len(r.Matches))
	fmt.Fprintf(w, "<tr><td>Same-name matches</td><td class=\"num\">%d</td></tr>\n", exact)
	fmt.Fprintf(w, "<tr><td>Matched source functions</td><td class=\"num\">%d</td></tr>\n", len(srcSeen))
	fmt.Fprintf(w, "<tr><td>Matched destination functions</td><td class=\"num\">%d</td></tr>\n", len(dstSeen))
	fmt.Fprintf(w, "<tr><td>Mean similarity</td><td class=\"num\">%.3f</td></tr>\n", mean)
	fmt.Fprintln(w, "</table>")

	if len(r.Matches) == 0 {
		fmt.Fprintln(w, "</body></html>")
		return
	}

	// Similarity distribution in tenths; 1.0 lands in the last bucket.
	var buckets [10]int
	for _, m := range r.Matches {
		b := int(math.Floor(m.Similarity * 10))
		if b > 9 {
			b = 9
		}
		if b < 0 {
			b = 0
		}
		buckets[b]++
	}
	maxCount := 0
	for _, c := range buckets {
		maxCount = max(maxCount, c)
	}
	fmt.Fprintln(w, "<h2>Similarity Distribution</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w, "<tr><th>Range</th><th>Matches</th><th></th></tr>")
	for i := 9; i >= 0; i-- {
		if buckets[i] == 0 {
			continue
		}
		barW := max(buckets[i]*200/maxCount, 2)
		fmt.Fprintf(w, "<tr><td>%.1f - %.1f</td><td class=\"num\">%d</td><td><span class=\"bar\" style=\"width:%dpx;background:%s\"></span></td></tr>\n",
			float64(i)/10, float64(i+1)/10, buckets[i], barW, colorAccent)
	}
	fmt.Fprintln(w, "</table>")

	fmt.Fprintln(w, "<h2>Matches</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w, "<tr><th>Source</th><th>Destination</th><th>Similarity</th><th>Confidence</th><th></th></tr>")
	limit := min(len(r.Matches), htmlMatchLimit)
	for _, m := range r.Matches[:limit] {
		color := colorMuted
		if m.Source.Name == m.Destination.Name {
			color = colorExact
		}
		barW := max(int(m.Similarity*120), 2)
		fmt.Fprintf(w, "<tr><td class=\"fn\">%s</td><td class=\"fn\">%s</td><td class=\"num\">%.3f</td><td class=\"num\">%.1f</td><td><span class=\"bar\" style=\"width:%dpx;background:%s\"></span></td></tr>\n",
			htmlEscape(refLabel(m.Source)), htmlEscape(refLabel(m.Destination)), m.Similarity, m.Confidence, barW, color)
	}
	if len(r.Matches) > limit {
		fmt.Fprintf(w, "<tr><td>... and %d more</td></tr>\n", len(r.Matches)-limit)
	}
	fmt.Fprintln(w, "</table>")

	fmt.Fprintln(w, "</body></html>")
}

func refLabel(ref FunctionRef) string {
	return fmt.Sprintf("%s @ 0x%x", ref.Name, ref.Address)
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
