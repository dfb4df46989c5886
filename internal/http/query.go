package http

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/example/lab-reservations/internal/scheduler"
)

// queryParser reads optional query parameters and collects every malformed
// one so a single 400 lists them all.
type queryParser struct {
	values  url.Values
	reasons []string
}

func newQueryParser(values url.Values) *queryParser {
	return &queryParser{values: values}
}

func (p *queryParser) text(key string) string {
	return strings.TrimSpace(p.values.Get(key))
}

func (p *queryParser) date(key string) *scheduler.Date {
	raw := p.text(key)
	if raw == "" {
		return nil
	}
	d, err := scheduler.ParseDate(raw)
	if err != nil {
		p.reasons = append(p.reasons, key+" must be YYYY-MM-DD")
		return nil
	}
	return &d
}

func (p *queryParser) timeOfDay(key string) *scheduler.TimeOfDay {
	raw := p.text(key)
	if raw == "" {
		return nil
	}
	t, err := scheduler.ParseTimeOfDay(raw)
	if err != nil {
		p.reasons = append(p.reasons, key+" must be HH:MM")
		return nil
	}
	return &t
}

func (p *queryParser) count(key string) int {
	raw := p.text(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		p.reasons = append(p.reasons, key+" must be a non-negative integer")
		return 0
	}
	return n
}

func (p *queryParser) err() error {
	if len(p.reasons) == 0 {
		return nil
	}
	return &scheduler.InvalidFilterError{Reasons: p.reasons}
}

func parseAvailabilityFilter(values url.Values) (scheduler.Filter, error) {
	p := newQueryParser(values)
	filter := scheduler.Filter{
		OwnerName:    p.text("owner"),
		DateFrom:     p.date("date_from"),
		DateTo:       p.date("date_to"),
		TimeFrom:     p.timeOfDay("time_from"),
		TimeTo:       p.timeOfDay("time_to"),
		MinCapacity:  p.count("min_capacity"),
		MinComputers: p.count("min_computers"),
	}
	return filter, p.err()
}

func parseSearchFilter(values url.Values) (scheduler.SearchFilter, error) {
	p := newQueryParser(values)
	filter := scheduler.SearchFilter{
		OwnerName: p.text("owner"),
		DateFrom:  p.date("date_from"),
		DateTo:    p.date("date_to"),
		TimeFrom:  p.timeOfDay("time_from"),
		TimeTo:    p.timeOfDay("time_to"),
	}
	return filter, p.err()
}

func parseDateRange(values url.Values) (from, to *scheduler.Date, err error) {
	p := newQueryParser(values)
	from = p.date("date_from")
	to = p.date("date_to")
	return from, to, p.err()
}
