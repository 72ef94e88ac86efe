package lottostats

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
)

var (
	digitsRegex  = regexp.MustCompile(`\d+`)
	numericCell  = regexp.MustCompile(`^\d{1,2}$`)
	dateSplitter = strings.NewReplacer(".", "-", "/", "-", " ", "")
)

// parseRows reads every <tr> of the page. The first cell carries the round,
// the second the date, and the first seven plain numeric cells after that the
// six numbers followed by the bonus.
func parseRows(body []byte, schedule draw.Schedule, fetchedAt time.Time) ([]draw.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, crerr.Wrap(err, "parse secondary html")
	}

	rows := make([]draw.Result, 0, 64)
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}

		round, ok := parseRound(cells.Eq(0).Text())
		if !ok {
			return
		}

		values := make([]int, 0, draw.NumbersPerDraw+1)
		cells.Slice(2, goquery.ToEnd).EachWithBreak(func(_ int, td *goquery.Selection) bool {
			text := strings.TrimSpace(td.Text())
			if !numericCell.MatchString(text) {
				return true
			}
			n, convErr := strconv.Atoi(text)
			if convErr != nil {
				return true
			}
			values = append(values, n)
			return len(values) < draw.NumbersPerDraw+1
		})
		if len(values) != draw.NumbersPerDraw+1 {
			return
		}

		row := draw.Result{
			Round:     round,
			Date:      parseDate(cells.Eq(1).Text(), round, schedule),
			Bonus:     values[draw.NumbersPerDraw],
			Source:    draw.SourceSecondary,
			FetchedAt: fetchedAt,
		}
		copy(row.Numbers[:], values[:draw.NumbersPerDraw])
		row = row.Normalize()
		if row.Validate() != nil {
			return
		}
		rows = append(rows, row)
	})

	return draw.DedupeLastSeen(rows), nil
}

func parseRound(text string) (int, bool) {
	digits := strings.Join(digitsRegex.FindAllString(text, -1), "")
	if digits == "" {
		return 0, false
	}
	round, err := strconv.Atoi(digits)
	if err != nil || round <= 0 {
		return 0, false
	}
	return round, true
}

func parseDate(text string, round int, schedule draw.Schedule) time.Time {
	normalized := strings.TrimSuffix(dateSplitter.Replace(strings.TrimSpace(text)), "-")
	if parsed, err := time.ParseInLocation(time.DateOnly, normalized, schedule.Location); err == nil {
		return parsed
	}
	return schedule.DrawDate(round)
}
