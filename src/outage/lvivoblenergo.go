package outage

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

const (
	lvivoblenergoBaseURL      = "https://api.loe.lviv.ua"
	lvivoblenergoDefaultGroup = "1.1"
)

var (
	htmlTagPattern  = regexp.MustCompile(`<[^>]*>`)
	timeSpanPattern = regexp.MustCompile(`з\s*(\d{1,2}):(\d{2})\s*до\s*(\d{1,2}):(\d{2})`)
)

// Lvivoblenergo fetches the hourly outage schedule published by LOE
type Lvivoblenergo struct {
	group string
	opts  options
}

type loeMenuItem struct {
	Name    string `json:"name"`
	RawHTML string `json:"rawHtml"`
}

type loeMenu struct {
	MenuItems []loeMenuItem `json:"menuItems"`
}

type loeResponse struct {
	Members []loeMenu `json:"hydra:member"`
}

// NewLvivoblenergo creates an LOE provider for the given queue group
func NewLvivoblenergo(group string, opts ...OptionFunc) *Lvivoblenergo {
	if group == "" {
		group = lvivoblenergoDefaultGroup
	}
	return &Lvivoblenergo{
		group: group,
		opts:  buildOptions(lvivoblenergoBaseURL, opts),
	}
}

func (l *Lvivoblenergo) Name() string  { return "Lvivoblenergo" }
func (l *Lvivoblenergo) Group() string { return l.group }

// FetchWindows returns today's outage windows for the group
func (l *Lvivoblenergo) FetchWindows(ctx context.Context) ([]Window, error) {
	url := l.opts.baseURL + "/api/menus?page=1&type=photo-grafic"
	log.Printf("Lvivoblenergo: fetching %s (group=%s)\n", url, l.group)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/ld+json")

	resp, err := l.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lvivoblenergo: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lvivoblenergo: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("lvivoblenergo: API returned %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed loeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("lvivoblenergo: decode response: %w", err)
	}

	schedule := todaySchedule(parsed)
	if schedule == "" {
		log.Println("Lvivoblenergo: no schedule published")
		return nil, nil
	}

	windows, err := parseGroupWindows(schedule, l.group)
	if err != nil {
		return nil, fmt.Errorf("lvivoblenergo: %w", err)
	}
	log.Printf("Lvivoblenergo: found %d windows for group %s\n", len(windows), l.group)
	return windows, nil
}

// todaySchedule picks the "Today" item, or the first item with content
func todaySchedule(resp loeResponse) string {
	var fallback string
	for _, member := range resp.Members {
		for _, item := range member.MenuItems {
			if strings.TrimSpace(item.RawHTML) == "" {
				continue
			}
			if item.Name == "Today" {
				return item.RawHTML
			}
			if fallback == "" {
				fallback = item.RawHTML
			}
		}
	}
	return fallback
}

// parseGroupWindows finds the sentence for group in the schedule HTML, e.g.
// "Група 1.1. Електроенергії немає з 08:00 до 12:00, з 16:00 до 20:00."
func parseGroupWindows(rawHTML, group string) ([]Window, error) {
	text := html.UnescapeString(htmlTagPattern.ReplaceAllString(rawHTML, " "))

	groupPattern := regexp.MustCompile(`Група\s+` + regexp.QuoteMeta(group) + `\.(.*?)(?:Група\s|$)`)
	match := groupPattern.FindStringSubmatch(strings.Join(strings.Fields(text), " "))
	if match == nil {
		log.Printf("Lvivoblenergo: group '%s' not found in schedule\n", group)
		return nil, nil
	}

	var windows []Window
	for _, span := range timeSpanPattern.FindAllStringSubmatch(match[1], -1) {
		w, err := spanToWindow(span[1:])
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func spanToWindow(parts []string) (Window, error) {
	var nums [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Window{}, err
		}
		nums[i] = n
	}

	w := Window{StartHour: nums[0], StartMinute: nums[1], EndHour: nums[2], EndMinute: nums[3]}
	if w.StartHour > 24 || w.EndHour > 24 || w.StartMinute > 59 || w.EndMinute > 59 {
		return Window{}, fmt.Errorf("invalid time span %s", w)
	}
	return w, nil
}
