package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-reservas-api/internal/domain"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5"
	defaultGeoURL  = "https://api.openweathermap.org/geo/1.0"

	// The free forecast API covers 5 days in 3-hour steps.
	maxForecastDays = 5
)

// Entry is one 3-hour forecast slot.
type Entry struct {
	At          time.Time
	TempC       float64
	WindSpeed   float64 // m/s
	Rain3hMM    float64 // precipitation over the 3-hour slot
	Condition   string  // provider condition group, e.g. "Rain", "Thunderstorm"
	Description string
}

// Forecast holds all slots for one location on one calendar day.
type Forecast struct {
	Location string
	Date     time.Time
	Entries  []Entry
}

// Client is a thin typed client for the OpenWeatherMap REST API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	geoURL     string
}

func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		geoURL:     defaultGeoURL,
	}
}

type geoResult struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

// Coordinates geocodes a location name to lat/lon.
func (c *Client) Coordinates(ctx context.Context, location string) (float64, float64, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("limit", "1")
	q.Set("appid", c.apiKey)

	var results []geoResult
	if err := c.getJSON(ctx, c.geoURL+"/direct?"+q.Encode(), &results); err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", location, err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("location %q: %w", location, domain.ErrNotFound)
	}
	return results[0].Lat, results[0].Lon, nil
}

// Forecast returns the 3-hour forecast slots for the given location on the
// given calendar day. The day is interpreted in date's own location.
func (c *Client) Forecast(ctx context.Context, location string, date time.Time) (*Forecast, error) {
	days := int(time.Until(date).Hours() / 24)
	if days < -1 || days > maxForecastDays {
		return nil, fmt.Errorf("forecast only available for the next %d days: %w", maxForecastDays, domain.ErrBadRequest)
	}

	lat, lon, err := c.Coordinates(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", "es")

	var resp forecastResponse
	if err := c.getJSON(ctx, c.baseURL+"/forecast?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("forecast %q: %w", location, err)
	}

	y, m, d := date.Date()
	fc := &Forecast{Location: location, Date: date}
	for _, item := range resp.List {
		at := time.Unix(item.Dt, 0).In(date.Location())
		ey, em, ed := at.Date()
		if ey != y || em != m || ed != d {
			continue
		}
		e := Entry{
			At:        at,
			TempC:     item.Main.Temp,
			WindSpeed: item.Wind.Speed,
			Rain3hMM:  item.Rain.ThreeH,
		}
		if len(item.Weather) > 0 {
			e.Condition = item.Weather[0].Main
			e.Description = item.Weather[0].Description
		}
		fc.Entries = append(fc.Entries, e)
	}
	if len(fc.Entries) == 0 {
		return nil, fmt.Errorf("no forecast data for %s on %s: %w", location, date.Format("2006-01-02"), domain.ErrNotFound)
	}
	return fc, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
