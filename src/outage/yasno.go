package outage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
)

const (
	yasnoBaseURL       = "https://app.yasno.ua"
	yasnoDefaultGroup  = "2.1"
	yasnoDefaultRegion = 25  // Kyiv
	yasnoDefaultDSO    = 902 // DTEK Kyiv
)

// Yasno fetches planned outages for DTEK regions from the YASNO API
type Yasno struct {
	group    string
	regionID int
	dsoID    int
	opts     options
}

type yasnoSlot struct {
	Start int    `json:"start"` // minutes from midnight
	End   int    `json:"end"`
	Type  string `json:"type"`
}

type yasnoDay struct {
	Slots []yasnoSlot `json:"slots"`
}

type yasnoGroup struct {
	Today yasnoDay `json:"today"`
}

// NewYasno creates a YASNO provider. Zero values pick the Kyiv defaults.
func NewYasno(group string, regionID, dsoID int, opts ...OptionFunc) *Yasno {
	if group == "" {
		group = yasnoDefaultGroup
	}
	if regionID == 0 {
		regionID = yasnoDefaultRegion
	}
	if dsoID == 0 {
		dsoID = yasnoDefaultDSO
	}
	return &Yasno{
		group:    group,
		regionID: regionID,
		dsoID:    dsoID,
		opts:     buildOptions(yasnoBaseURL, opts),
	}
}

func (y *Yasno) Name() string  { return "YASNO" }
func (y *Yasno) Group() string { return y.group }

func (y *Yasno) url() string {
	return fmt.Sprintf("%s/api/blackout-service/public/shutdowns/regions/%d/dsos/%d/planned-outages",
		y.opts.baseURL, y.regionID, y.dsoID)
}

// FetchWindows returns today's definite outage windows for the group
func (y *Yasno) FetchWindows(ctx context.Context) ([]Window, error) {
	url := y.url()
	log.Printf("YASNO: fetching %s (group=%s)\n", url, y.group)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := y.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yasno: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yasno: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("yasno: API returned %d: %s", resp.StatusCode, snippet(body))
	}

	var groups map[string]json.RawMessage
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, fmt.Errorf("yasno: decode response: %w", err)
	}

	raw, ok := groups[y.group]
	if !ok {
		log.Printf("YASNO: group '%s' not found in response (available: %v)\n", y.group, firstKeys(groups, 10))
		return nil, nil
	}

	var group yasnoGroup
	if err := json.Unmarshal(raw, &group); err != nil {
		return nil, fmt.Errorf("yasno: decode group %s: %w", y.group, err)
	}

	var windows []Window
	for _, slot := range group.Today.Slots {
		if slot.Type != "Definite" {
			continue
		}
		windows = append(windows, Window{
			StartHour:   slot.Start / 60,
			StartMinute: slot.Start % 60,
			EndHour:     slot.End / 60,
			EndMinute:   slot.End % 60,
		})
	}
	log.Printf("YASNO: found %d windows for group %s\n", len(windows), y.group)
	return windows, nil
}

// snippet returns at most the first 200 bytes of an error body
func snippet(body []byte) string {
	if len(body) == 0 {
		return "(empty)"
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func firstKeys(m map[string]json.RawMessage, n int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
