// Package analytics turns raw click rows into the summary tables shown on
// dashboards. Everything here is pure: callers pass the clicks and "now".
package analytics

import (
	"math"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
)

const (
	LabelUnknown     = "Unknown"
	LabelDirect      = "Direct"
	LabelUnparseable = "Autre"

	dateLayout = "2006-01-02"
)

type DailyClicks struct {
	Date   string `json:"date"`
	Clicks int    `json:"clicks"`
}

// Share is one row of a frequency table. Percentage is omitted from tables
// that do not carry one.
type Share struct {
	Label      string   `json:"label"`
	Clicks     int      `json:"clicks"`
	Percentage *float64 `json:"percentage,omitempty"`
}

type TopLink struct {
	ID          uuid.UUID `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Description *string   `json:"description,omitempty"`
	Clicks      int       `json:"clicks"`
	Percentage  float64   `json:"percentage"`
}

type Summary struct {
	TotalClicks  int           `json:"totalClicks"`
	ClicksToday  int           `json:"clicksToday"`
	ClicksByDate []DailyClicks `json:"clicksByDate"`
	Devices      []Share       `json:"deviceStats"`
	Countries    []Share       `json:"countryStats"`
	Browsers     []Share       `json:"browserStats"`
	OS           []Share       `json:"osStats"`
	Referrers    []Share       `json:"referrerStats"`
}

// Options bounds the tables of a Summary.
type Options struct {
	Days         int
	TopCountries int
}

// Summarize aggregates clicks relative to now. Calendar boundaries use now's
// location.
func Summarize(clicks []model.Click, now time.Time, opts Options) Summary {
	total := len(clicks)

	devices := newTally()
	countries := newTally()
	browsers := newTally()
	systems := newTally()
	referrers := newTally()

	for _, c := range clicks {
		devices.add(labelOrUnknown(c.Device))
		countries.add(labelOrUnknown(c.Country))
		browsers.add(labelOrUnknown(c.Browser))
		systems.add(labelOrUnknown(c.OS))
		referrers.add(NormalizeReferrer(c.Referer))
	}

	return Summary{
		TotalClicks:  total,
		ClicksToday:  CountSince(clicks, StartOfDay(now)),
		ClicksByDate: DailySeries(clicks, now, opts.Days),
		Devices:      devices.shares(total, true, 0),
		Countries:    countries.shares(total, true, opts.TopCountries),
		Browsers:     browsers.shares(total, false, 0),
		OS:           systems.shares(total, false, 0),
		Referrers:    referrers.shares(total, false, 0),
	}
}

// Percentage returns count/total as a percentage rounded to one decimal.
func Percentage(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func CountSince(clicks []model.Click, since time.Time) int {
	n := 0
	for _, c := range clicks {
		if !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

// DailySeries returns exactly days buckets ending today, oldest first, with
// zero-filled gaps.
func DailySeries(clicks []model.Click, now time.Time, days int) []DailyClicks {
	if days <= 0 {
		return []DailyClicks{}
	}

	loc := now.Location()
	start := StartOfDay(now).AddDate(0, 0, -(days - 1))

	series := make([]DailyClicks, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format(dateLayout)
		series[i] = DailyClicks{Date: key}
		index[key] = i
	}

	for _, c := range clicks {
		if i, ok := index[c.CreatedAt.In(loc).Format(dateLayout)]; ok {
			series[i].Clicks++
		}
	}

	return series
}

// NormalizeReferrer reduces a referer header to its host.
func NormalizeReferrer(referer *string) string {
	if referer == nil || *referer == "" {
		return LabelDirect
	}
	u, err := url.Parse(*referer)
	if err != nil || u.Host == "" {
		return LabelUnparseable
	}
	return u.Hostname()
}

// RankLinks orders links by descending clicks, keeping input order on ties,
// and keeps the first limit entries (all when limit <= 0).
func RankLinks(links []model.LinkClicks, limit int) []TopLink {
	total := 0
	for _, l := range links {
		total += l.Clicks
	}

	ranked := make([]model.LinkClicks, len(links))
	copy(ranked, links)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Clicks > ranked[j].Clicks
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	top := make([]TopLink, 0, len(ranked))
	for _, l := range ranked {
		top = append(top, TopLink{
			ID:          l.LinkID,
			ShortCode:   l.ShortCode,
			OriginalURL: l.OriginalURL,
			Description: l.Description,
			Clicks:      l.Clicks,
			Percentage:  Percentage(l.Clicks, total),
		})
	}
	return top
}

func labelOrUnknown(s *string) string {
	if s == nil || *s == "" {
		return LabelUnknown
	}
	return *s
}

// tally counts labels and remembers first-seen order for stable ties.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

func (t *tally) shares(total int, withPercentage bool, limit int) []Share {
	out := make([]Share, 0, len(t.order))
	for _, label := range t.order {
		s := Share{Label: label, Clicks: t.counts[label]}
		if withPercentage {
			p := Percentage(s.Clicks, total)
			s.Percentage = &p
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Clicks > out[j].Clicks
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
