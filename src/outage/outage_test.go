package outage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/deyectl/src/outage"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 10, 20, hour, minute, 0, 0, time.Local)
}

func TestWindow(t *testing.T) {
	w := outage.Window{StartHour: 8, StartMinute: 30, EndHour: 12, EndMinute: 0}

	assert.Equal(t, "08:30-12:00", w.String())
	assert.Equal(t, 3*time.Hour+30*time.Minute, w.Duration())
	assert.True(t, w.Contains(at(8, 30)))
	assert.True(t, w.Contains(at(11, 59)))
	assert.False(t, w.Contains(at(12, 0)))
	assert.False(t, w.Contains(at(8, 29)))

	midnight := outage.Window{StartHour: 22, EndHour: 24}
	assert.Equal(t, "22:00-24:00", midnight.String())
	assert.True(t, midnight.Contains(at(23, 59)))
}

func TestNext(t *testing.T) {
	windows := []outage.Window{
		{StartHour: 16, EndHour: 20},
		{StartHour: 4, EndHour: 8},
		{StartHour: 10, EndHour: 14},
	}

	t.Run("before the first window", func(t *testing.T) {
		w, ok := outage.Next(windows, at(1, 0))
		require.True(t, ok)
		assert.Equal(t, 4, w.StartHour)
	})

	t.Run("inside a window", func(t *testing.T) {
		w, ok := outage.Next(windows, at(11, 15))
		require.True(t, ok)
		assert.Equal(t, 10, w.StartHour)
	})

	t.Run("between windows", func(t *testing.T) {
		w, ok := outage.Next(windows, at(14, 0))
		require.True(t, ok)
		assert.Equal(t, 16, w.StartHour)
	})

	t.Run("after the last window", func(t *testing.T) {
		_, ok := outage.Next(windows, at(21, 0))
		assert.False(t, ok)
	})

	t.Run("no windows", func(t *testing.T) {
		_, ok := outage.Next(nil, at(9, 0))
		assert.False(t, ok)
	})
}

func TestNew(t *testing.T) {
	p, err := outage.New(outage.Settings{Provider: "yasno", Group: "3.2", RegionID: 3, DSOID: 301})
	require.NoError(t, err)
	assert.Equal(t, "YASNO", p.Name())
	assert.Equal(t, "3.2", p.Group())

	p, err = outage.New(outage.Settings{})
	require.NoError(t, err)
	assert.Equal(t, "Lvivoblenergo", p.Name())
	assert.Equal(t, "1.1", p.Group())

	p, err = outage.New(outage.Settings{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = outage.New(outage.Settings{Provider: "dtek"})
	assert.Error(t, err)
}

func TestYasno_FetchWindows(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"2.1": map[string]any{
				"today": map[string]any{
					"slots": []map[string]any{
						{"start": 0, "end": 240, "type": "Definite"},
						{"start": 240, "end": 480, "type": "NotPlanned"},
						{"start": 570, "end": 780, "type": "Definite"},
						{"start": 1260, "end": 1440, "type": "Definite"},
					},
				},
				"tomorrow": map[string]any{"slots": []map[string]any{}},
			},
			"2.2": map[string]any{"today": map[string]any{"slots": []map[string]any{}}},
		})
	}))
	defer server.Close()

	p := outage.NewYasno("", 0, 0, outage.WithBaseURL(server.URL))
	windows, err := p.FetchWindows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/blackout-service/public/shutdowns/regions/25/dsos/902/planned-outages", requestedPath)
	assert.Equal(t, []outage.Window{
		{StartHour: 0, StartMinute: 0, EndHour: 4, EndMinute: 0},
		{StartHour: 9, StartMinute: 30, EndHour: 13, EndMinute: 0},
		{StartHour: 21, StartMinute: 0, EndHour: 24, EndMinute: 0},
	}, windows)
}

func TestYasno_MissingGroup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"1.1": {"today": {"slots": [{"start": 0, "end": 60, "type": "Definite"}]}}}`))
	}))
	defer server.Close()

	p := outage.NewYasno("6.2", 25, 902, outage.WithBaseURL(server.URL))
	windows, err := p.FetchWindows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestYasno_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer server.Close()

	p := outage.NewYasno("2.1", 25, 902, outage.WithBaseURL(server.URL))
	_, err := p.FetchWindows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.NotContains(t, err.Error(), strings.Repeat("x", 201))
}

const loeSchedule = `<div><p><b>Графік погодинних відключень на 20.10.2025</b></p>
<p>Інформація станом на 07:45 20.10.2025</p>
<p>Група 1.1. Електроенергії немає з 08:00 до 12:00, з 18:30 до 22:00.</p>
<p>Група 1.2. Електроенергія&nbsp;є.</p>
<p>Група 2.1. Електроенергії немає з 00:00 до 04:00.</p></div>`

func loeServer(t *testing.T, items []map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/menus", r.URL.Path)
		assert.Equal(t, "photo-grafic", r.URL.Query().Get("type"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hydra:member": []map[string]any{
				{"name": "Arhiv", "menuItems": items},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLvivoblenergo_FetchWindows(t *testing.T) {
	server := loeServer(t, []map[string]string{
		{"name": "Tomorrow", "rawHtml": `<p>Група 1.1. Електроенергії немає з 01:00 до 02:00.</p>`},
		{"name": "Today", "rawHtml": loeSchedule},
	})

	tests := []struct {
		group    string
		expected []outage.Window
	}{
		{"1.1", []outage.Window{
			{StartHour: 8, EndHour: 12},
			{StartHour: 18, StartMinute: 30, EndHour: 22},
		}},
		{"1.2", nil},
		{"2.1", []outage.Window{{StartHour: 0, EndHour: 4}}},
		{"5.1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			p := outage.NewLvivoblenergo(tt.group, outage.WithBaseURL(server.URL))
			windows, err := p.FetchWindows(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, windows)
		})
	}
}

func TestLvivoblenergo_FallsBackToFirstItem(t *testing.T) {
	server := loeServer(t, []map[string]string{
		{"name": "Empty", "rawHtml": "  "},
		{"name": "Графік", "rawHtml": loeSchedule},
	})

	p := outage.NewLvivoblenergo("2.1", outage.WithBaseURL(server.URL))
	windows, err := p.FetchWindows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []outage.Window{{StartHour: 0, EndHour: 4}}, windows)
}

func TestLvivoblenergo_NothingPublished(t *testing.T) {
	server := loeServer(t, nil)

	p := outage.NewLvivoblenergo("1.1", outage.WithBaseURL(server.URL))
	windows, err := p.FetchWindows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, windows)
}
